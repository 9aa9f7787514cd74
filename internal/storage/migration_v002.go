package storage

import "database/sql"

// migrateV002 adds load_ms: the page load time measured by the status
// monitor's URL timer, zero for script-driven loads and older rows.
func migrateV002(tx *sql.Tx) error {
	_, err := tx.Exec(`ALTER TABLE outcomes ADD COLUMN load_ms INTEGER NOT NULL DEFAULT 0`)
	return err
}
