package advisor

import (
	"database/sql"
	"fmt"
)

func initDatabase(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := exec(tx, `
		CREATE TABLE IF NOT EXISTS advice_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt TEXT NOT NULL,
			status TEXT NOT NULL,
			model TEXT,
			plan_count INTEGER NOT NULL DEFAULT 0,
			failure_kind TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return err
	}

	if err := exec(tx, `
		CREATE INDEX IF NOT EXISTS idx_advice_logs_created_at
		ON advice_logs (created_at)
	`); err != nil {
		return err
	}

	return tx.Commit()
}

func exec(tx *sql.Tx, query string) error {
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("exec schema statement: %w", err)
	}
	return nil
}
