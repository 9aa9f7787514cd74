package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/navstatus/internal/config"
	"github.com/runnerr0/navstatus/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// openTestDB creates a migrated in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	runner := storage.NewMigrationRunner(db)
	require.NoError(t, runner.Run())

	return db
}

// newTestStore returns a store over a fresh in-memory database.
func newTestStore(t *testing.T, excluded ...string) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(openTestDB(t), excluded)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testConfig returns defaults pointed at a temp directory, with fast
// polling and quiet logs.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Path = t.TempDir()
	cfg.Tracker.TimeoutMs = 2000
	cfg.Tracker.PollIntervalMs = 5
	cfg.Logging.Level = "error"
	return cfg
}

// seedOutcome inserts an outcome with the given age and returns it.
func seedOutcome(t *testing.T, store storage.Store, url string, code int, age time.Duration) *storage.Outcome {
	t.Helper()
	o := &storage.Outcome{
		Timestamp:  time.Now().Add(-age),
		ContextID:  "ctx-test",
		URL:        url,
		StatusCode: code,
		Engine:     "rod",
		Elapsed:    120 * time.Millisecond,
		LoadTime:   95 * time.Millisecond,
		Episode:    1,
	}
	require.NoError(t, store.AddOutcome(context.Background(), o))
	return o
}
