package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationRunner_FreshDB(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	err := runner.Run()
	require.NoError(t, err)

	for _, table := range []string{"outcomes", "schema_migrations"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrationRunner_IndexesCreated(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	expectedIndexes := []string{
		"idx_outcomes_ts",
		"idx_outcomes_domain",
		"idx_outcomes_status_code",
	}
	for _, idx := range expectedIndexes {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx,
		).Scan(&name)
		require.NoError(t, err, "index %s should exist", idx)
		assert.Equal(t, idx, name)
	}
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)

	// Run migrations twice
	require.NoError(t, runner.Run())
	require.NoError(t, runner.Run())

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "each migration recorded exactly once after double-run")
}

func TestMigrationRunner_SchemaMigrationsTracking(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	var version int
	var name string
	err := db.QueryRow("SELECT version, name FROM schema_migrations WHERE version = 1").Scan(&version, &name)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, "outcomes", name)
}

func TestMigrationRunner_WALMode(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	var journalMode string
	err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	require.NoError(t, err)
	// In-memory databases report "memory"; WAL only takes effect on
	// file-backed databases.
	assert.Contains(t, []string{"wal", "memory"}, journalMode)
}

func TestMigrationRunner_OutcomesTableColumns(t *testing.T) {
	db := openTestDB(t)
	runner := NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	_, err := db.Exec(`
		INSERT INTO outcomes (id, ts, context_id, url, domain, status_code, timed_out, engine, elapsed_ms, episode)
		VALUES ('NAV-1', CURRENT_TIMESTAMP, 'ctx', 'https://example.com', 'example.com', 404, 1, 'rod', 1200, 3)
	`)
	require.NoError(t, err)

	var url, engine string
	var status, elapsed, episode int
	var timedOut bool
	err = db.QueryRow("SELECT url, status_code, timed_out, engine, elapsed_ms, episode FROM outcomes WHERE id = 'NAV-1'").
		Scan(&url, &status, &timedOut, &engine, &elapsed, &episode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", url)
	assert.Equal(t, 404, status)
	assert.True(t, timedOut)
	assert.Equal(t, "rod", engine)
	assert.Equal(t, 1200, elapsed)
	assert.Equal(t, 3, episode)
}

func TestMigrationRunner_StatusCodeRequired(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	_, err := db.Exec(`INSERT INTO outcomes (id, url) VALUES ('NAV-2', 'https://x')`)
	assert.Error(t, err, "status_code has no default")
}

func TestMigrationRunner_LoadColumnAdded(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, NewMigrationRunner(db).Run())

	var name string
	err := db.QueryRow("SELECT name FROM schema_migrations WHERE version = 2").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "outcomes_load_ms", name)

	_, err = db.Exec(`INSERT INTO outcomes (id, url, status_code) VALUES ('NAV-3', 'https://x', 200)`)
	require.NoError(t, err)
	var loadMs int
	require.NoError(t, db.QueryRow("SELECT load_ms FROM outcomes WHERE id = 'NAV-3'").Scan(&loadMs))
	assert.Equal(t, 0, loadMs)
}

func TestMigrationRunner_UpgradesVersionOneDatabase(t *testing.T) {
	db := openTestDB(t)

	// A database migrated before load_ms existed.
	v1 := &MigrationRunner{db: db, migrations: outcomeMigrations[:1]}
	require.NoError(t, v1.Run())
	_, err := db.Exec(`INSERT INTO outcomes (id, url, status_code, elapsed_ms) VALUES ('NAV-old', 'https://x', 404, 900)`)
	require.NoError(t, err)

	require.NoError(t, NewMigrationRunner(db).Run())

	store, err := NewSQLiteStore(db, nil)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetOutcome(context.Background(), "NAV-old")
	require.NoError(t, err)
	assert.Equal(t, 404, got.StatusCode)
	assert.Equal(t, 900*time.Millisecond, got.Elapsed)
	assert.Zero(t, got.LoadTime)
}
