package db

import (
	"context"
	"fmt"
)

func (db *DB) AddCategory(ctx context.Context, guildID, name string) error {
	result, err := db.pool.Exec(ctx,
		"INSERT INTO categories (guild_id, name) VALUES ($1, $2) ON CONFLICT (guild_id, name) DO NOTHING",
		guildID, name,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("category already exists")
	}
	return nil
}

func (db *DB) RemoveCategory(ctx context.Context, guildID, name string) error {
	result, err := db.pool.Exec(ctx,
		"DELETE FROM categories WHERE guild_id = $1 AND name = $2",
		guildID, name,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("category not found")
	}
	return nil
}

// ListCategories returns the vocabulary for a guild. An empty guildID
// returns every distinct category name across guilds, which is what a
// direct-message session without a guild hint falls back to.
func (db *DB) ListCategories(ctx context.Context, guildID string) ([]string, error) {
	query := "SELECT name FROM categories WHERE guild_id = $1 ORDER BY name"
	args := []any{guildID}
	if guildID == "" {
		query = "SELECT DISTINCT name FROM categories ORDER BY name"
		args = nil
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
