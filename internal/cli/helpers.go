package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/runnerr0/navstatus/internal/config"
	"github.com/runnerr0/navstatus/internal/logging"
	"github.com/runnerr0/navstatus/internal/storage"
	"github.com/runnerr0/navstatus/internal/tracker"
)

// loadConfig resolves the configuration: --config when given, otherwise
// the default path, created with defaults on first use.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// newLogger builds the command logger. --verbose forces debug level.
func newLogger(cfg *config.Config, globals *GlobalFlags) (*zap.Logger, error) {
	lc := cfg.Logging
	if globals != nil && globals.Verbose {
		lc.Level = "debug"
	}
	return logging.New(lc)
}

// openStore opens the configured history database, runs migrations, and
// returns a ready-to-use store and the underlying *sql.DB.
func openStore(cfg *config.Config) (*storage.SQLiteStore, *sql.DB, error) {
	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	runner := storage.NewMigrationRunner(db)
	if err := runner.Run(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	store, err := storage.NewSQLiteStore(db, cfg.History.ExcludeDomains)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init store: %w", err)
	}

	return store, db, nil
}

// trackerOptions maps the tracker config section onto tracker.Options.
// A positive timeout overrides the configured one. With tracing on, the
// trace logger is built separately so logging.level cannot silence it.
func trackerOptions(cfg *config.Config, timeout time.Duration, log *zap.Logger) (tracker.Options, error) {
	if timeout <= 0 {
		timeout = cfg.Tracker.Timeout()
	}
	opts := tracker.Options{
		Timeout:      timeout,
		PollInterval: cfg.Tracker.PollInterval(),
		IdlePolls:    cfg.Tracker.IdlePolls,
		Trace:        cfg.Tracker.Trace,
		Logger:       log,
	}
	if opts.Trace {
		tracer, err := logging.NewTrace(cfg.Logging)
		if err != nil {
			return opts, err
		}
		opts.Tracer = tracer
	}
	return opts, nil
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, or m suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// outcomeJSON is the JSON form of a stored or freshly settled outcome.
type outcomeJSON struct {
	ID         string `json:"id,omitempty"`
	Timestamp  string `json:"ts"`
	ContextID  string `json:"context_id"`
	URL        string `json:"url"`
	Domain     string `json:"domain,omitempty"`
	StatusCode int    `json:"status_code"`
	TimedOut   bool   `json:"timed_out"`
	Engine     string `json:"engine"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	LoadMs     int64  `json:"load_ms"`
	Episode    uint64 `json:"episode"`
	Recorded   bool   `json:"recorded"`
}

func toOutcomeJSON(o *storage.Outcome) outcomeJSON {
	return outcomeJSON{
		ID:         o.ID,
		Timestamp:  o.Timestamp.UTC().Format(time.RFC3339),
		ContextID:  o.ContextID,
		URL:        o.URL,
		Domain:     o.Domain,
		StatusCode: o.StatusCode,
		TimedOut:   o.TimedOut,
		Engine:     o.Engine,
		ElapsedMs:  o.Elapsed.Milliseconds(),
		LoadMs:     o.LoadTime.Milliseconds(),
		Episode:    o.Episode,
		Recorded:   o.ID != "",
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printOutcome reports a freshly settled outcome.
func printOutcome(globals *GlobalFlags, o *storage.Outcome) error {
	if globals != nil && globals.JSON {
		return printJSON(toOutcomeJSON(o))
	}

	line := fmt.Sprintf("%d %s (%s", o.StatusCode, o.URL, o.Elapsed.Round(time.Millisecond))
	if o.TimedOut {
		line += ", timed out"
	}
	line += ")"
	fmt.Println(line)
	if o.ID != "" {
		fmt.Printf("  Recorded as %s\n", o.ID)
	}
	return nil
}

// recordOutcome stores o unless store is nil. Excluded domains are
// reported, not treated as errors.
func recordOutcome(ctx context.Context, store storage.Store, o *storage.Outcome, log *zap.Logger) error {
	if store == nil {
		return nil
	}
	if err := store.AddOutcome(ctx, o); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	if o.ID == "" {
		log.Info("outcome not recorded, domain excluded", zap.String("domain", o.Domain))
	}
	return nil
}
