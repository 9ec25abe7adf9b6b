package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/astralship/energybot/internal/account"
	"github.com/astralship/energybot/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Postgres implements Gateway on top of the shared pgx pool. Commit is
// idempotent: the (voyager_id, session_id) unique key absorbs replays.
type Postgres struct {
	db *db.DB
}

func NewPostgres(database *db.DB) *Postgres {
	return &Postgres{db: database}
}

func (p *Postgres) Commit(ctx context.Context, record *account.DistributionRecord) (CommitResult, error) {
	if record.Status != account.StatusValidated && record.Status != account.StatusCommitted {
		return "", ErrNotCommittable
	}

	tx, err := p.db.Pool().Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var declared *string
	if record.DeclaredTotal != nil {
		s := record.DeclaredTotal.String()
		declared = &s
	}

	var accountID string
	err = tx.QueryRow(ctx,
		`INSERT INTO energy_accounts (voyager_id, voyager_name, guild_id, session_id, declared_total)
         VALUES ($1, $2, $3, $4, $5::numeric)
         ON CONFLICT (voyager_id, session_id) DO NOTHING
         RETURNING id`,
		record.VoyagerID, record.VoyagerName, record.GuildID, record.SessionID, declared,
	).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return CommitAlreadyCommitted, nil
	}
	if err != nil {
		return "", err
	}

	for i, e := range record.Entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO energy_account_entries (account_id, position, category, recipient, quantity)
             VALUES ($1, $2, $3, $4, $5::numeric)`,
			accountID, i, e.Category, e.Recipient, e.Quantity.String(),
		); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return CommitNew, nil
}

func (p *Postgres) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT id, voyager_id, voyager_name, guild_id, session_id,
                     COALESCE(declared_total::text, ''), committed_at
              FROM energy_accounts WHERE TRUE`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.VoyagerID != "" {
		query += " AND voyager_id = " + arg(filter.VoyagerID)
	}
	if filter.GuildID != "" {
		query += " AND guild_id = " + arg(filter.GuildID)
	}
	if !filter.From.IsZero() {
		query += " AND committed_at >= " + arg(filter.From)
	}
	if !filter.To.IsZero() {
		query += " AND committed_at < " + arg(filter.To)
	}
	query += " ORDER BY committed_at, id"

	rows, err := p.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	ids := make([]string, 0)
	byID := make(map[string]int)
	for rows.Next() {
		var (
			id, declared string
			e            Entry
			committedAt  time.Time
		)
		if err := rows.Scan(&id, &e.VoyagerID, &e.VoyagerName, &e.GuildID, &e.SessionID, &declared, &committedAt); err != nil {
			return nil, err
		}
		e.CommittedAt = committedAt
		if declared != "" {
			d, err := decimal.NewFromString(declared)
			if err != nil {
				return nil, fmt.Errorf("bad declared_total for account %s: %w", id, err)
			}
			e.DeclaredTotal = &d
		}
		byID[id] = len(entries)
		ids = append(ids, id)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	lineRows, err := p.db.Pool().Query(ctx,
		`SELECT account_id, category, recipient, quantity::text
         FROM energy_account_entries
         WHERE account_id = ANY($1)
         ORDER BY account_id, position`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var (
			accountID, qty string
			line           account.Entry
		)
		if err := lineRows.Scan(&accountID, &line.Category, &line.Recipient, &qty); err != nil {
			return nil, err
		}
		q, err := decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("bad quantity for account %s: %w", accountID, err)
		}
		line.Quantity = q
		idx, ok := byID[accountID]
		if !ok {
			continue
		}
		entries[idx].Allocations = append(entries[idx].Allocations, line)
	}
	return entries, lineRows.Err()
}
