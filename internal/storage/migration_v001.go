package storage

import "database/sql"

// migrateV001 creates the outcome history schema. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS outcomes (
			id          TEXT PRIMARY KEY,
			ts          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			context_id  TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL,
			domain      TEXT NOT NULL DEFAULT '',
			status_code INTEGER NOT NULL,
			timed_out   BOOLEAN NOT NULL DEFAULT 0,
			engine      TEXT NOT NULL DEFAULT '',
			elapsed_ms  INTEGER NOT NULL DEFAULT 0,
			episode     INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_outcomes_ts          ON outcomes(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_domain      ON outcomes(domain)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_status_code ON outcomes(status_code)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
