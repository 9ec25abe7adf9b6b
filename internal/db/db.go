package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// Pool exposes the underlying pool for the ledger gateway.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS energy_accounts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			voyager_id TEXT NOT NULL,
			voyager_name TEXT NOT NULL,
			guild_id TEXT NOT NULL DEFAULT '',
			session_id UUID NOT NULL,
			declared_total NUMERIC,
			committed_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (voyager_id, session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_energy_accounts_voyager_id ON energy_accounts(voyager_id);
		CREATE INDEX IF NOT EXISTS idx_energy_accounts_guild_id ON energy_accounts(guild_id);
		CREATE TABLE IF NOT EXISTS energy_account_entries (
			account_id UUID NOT NULL REFERENCES energy_accounts(id) ON DELETE CASCADE,
			position INT NOT NULL,
			category TEXT NOT NULL,
			recipient TEXT NOT NULL DEFAULT '',
			quantity NUMERIC NOT NULL,
			PRIMARY KEY (account_id, position)
		);
		CREATE TABLE IF NOT EXISTS categories (
			guild_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, name)
		);
	`)
	return err
}
