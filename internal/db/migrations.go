package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single schema change, applied at most once
type Migration struct {
	ID int
	Up func(ctx context.Context, db *sql.DB) error
}

// migrations are applied in order on every open
var migrations = []Migration{
	{
		// Backstop for two syncs of the same connection inserting at once
		ID: 1,
		Up: func(ctx context.Context, db *sql.DB) error {
			_, err := db.ExecContext(ctx, `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_external
				ON transactions(external_transaction_id, bank_connection_id)
			`)
			return err
		},
	},
}

// ApplyMigrations applies all pending migrations to the database.
func ApplyMigrations(ctx context.Context, db *sql.DB, logger func(msg string, args ...interface{})) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		logger("Applying migration %d", m.ID)
		if err := m.Up(ctx, db); err != nil {
			return fmt.Errorf("migration %d: %w", m.ID, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO migrations (id) VALUES (?)`, m.ID); err != nil {
			return err
		}
		logger("Migration %d applied", m.ID)
	}

	return nil
}

func appliedMigrations(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		applied[id] = true
	}
	return applied, rows.Err()
}
