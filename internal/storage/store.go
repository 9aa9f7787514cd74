package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an outcome id does not exist.
var ErrNotFound = errors.New("outcome not found")

// tsLayout is fixed-width so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Store defines the interface for outcome history operations.
type Store interface {
	AddOutcome(ctx context.Context, o *Outcome) error
	GetOutcome(ctx context.Context, id string) (*Outcome, error)
	SearchOutcomes(ctx context.Context, q SearchQuery) ([]Outcome, error)
	DeleteOutcome(ctx context.Context, id string) error
	CountOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeAll(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// Prepared statements
	insertOutcome *sql.Stmt
	getOutcome    *sql.Stmt
	deleteOutcome *sql.Stmt

	excluded []string
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and
// migrated database. Outcomes for excludeDomains, or any of their
// subdomains, are never written.
func NewSQLiteStore(db *sql.DB, excludeDomains []string) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	for _, d := range excludeDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			s.excluded = append(s.excluded, d)
		}
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertOutcome, err = s.db.Prepare(`
		INSERT INTO outcomes (id, ts, context_id, url, domain, status_code, timed_out, engine, elapsed_ms, load_ms, episode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getOutcome, err = s.db.Prepare(`
		SELECT id, ts, context_id, url, domain, status_code, timed_out, engine, elapsed_ms, load_ms, episode
		FROM outcomes WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.deleteOutcome, err = s.db.Prepare(`DELETE FROM outcomes WHERE id = ?`)
	if err != nil {
		return err
	}

	return nil
}

// IsExcluded reports whether domain matches an exclusion rule.
func (s *SQLiteStore) IsExcluded(domain string) bool {
	domain = strings.ToLower(domain)
	for _, d := range s.excluded {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// generateID creates an outcome ID: NAV- + 12 hex chars of a random UUID.
func generateID() string {
	return "NAV-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// extractDomain pulls the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// AddOutcome inserts a new outcome. The ID and Domain fields are populated
// automatically. If the domain is excluded, the outcome is silently
// skipped (ID remains empty, no error).
func (s *SQLiteStore) AddOutcome(ctx context.Context, o *Outcome) error {
	o.Domain = extractDomain(o.URL)

	if o.Domain != "" && s.IsExcluded(o.Domain) {
		return nil
	}

	o.ID = generateID()
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}

	tsFormatted := o.Timestamp.UTC().Format(tsLayout)
	_, err := s.insertOutcome.ExecContext(ctx,
		o.ID, tsFormatted, o.ContextID, o.URL, o.Domain,
		o.StatusCode, o.TimedOut, o.Engine, o.Elapsed.Milliseconds(), o.LoadTime.Milliseconds(), int64(o.Episode),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (Outcome, error) {
	var o Outcome
	var tsStr string
	var elapsedMs, loadMs, episode int64
	err := row.Scan(
		&o.ID, &tsStr, &o.ContextID, &o.URL, &o.Domain,
		&o.StatusCode, &o.TimedOut, &o.Engine, &elapsedMs, &loadMs, &episode,
	)
	if err != nil {
		return o, err
	}
	o.Timestamp, _ = parseTimestamp(tsStr)
	o.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	o.LoadTime = time.Duration(loadMs) * time.Millisecond
	o.Episode = uint64(episode)
	return o, nil
}

// GetOutcome retrieves a single outcome by ID.
func (s *SQLiteStore) GetOutcome(ctx context.Context, id string) (*Outcome, error) {
	o, err := scanOutcome(s.getOutcome.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get outcome: %w", err)
	}
	return &o, nil
}

// SearchOutcomes lists outcomes matching q, newest first.
func (s *SQLiteStore) SearchOutcomes(ctx context.Context, q SearchQuery) ([]Outcome, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	var clauses []string
	var args []interface{}

	baseQuery := `
		SELECT id, ts, context_id, url, domain, status_code, timed_out, engine, elapsed_ms, load_ms, episode
		FROM outcomes
	`

	if q.URLContains != "" {
		clauses = append(clauses, "url LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q.URLContains)+"%")
	}
	if q.Domain != "" {
		clauses = append(clauses, "domain = ?")
		args = append(args, q.Domain)
	}
	if q.StatusCode != 0 {
		clauses = append(clauses, "status_code = ?")
		args = append(args, q.StatusCode)
	}
	if q.TimedOut {
		clauses = append(clauses, "timed_out = 1")
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "ts >= ?")
		args = append(args, q.Since.UTC().Format(tsLayout))
	}
	if !q.Until.IsZero() {
		clauses = append(clauses, "ts <= ?")
		args = append(args, q.Until.UTC().Format(tsLayout))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	fullQuery := baseQuery + where + " ORDER BY ts DESC LIMIT ? OFFSET ?"
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, fullQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// DeleteOutcome removes an outcome by ID.
func (s *SQLiteStore) DeleteOutcome(ctx context.Context, id string) error {
	res, err := s.deleteOutcome.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete outcome: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// CountOlderThan returns how many outcomes PruneExpired would delete.
func (s *SQLiteStore) CountOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM outcomes WHERE ts < ?", olderThan.UTC().Format(tsLayout),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

// PruneExpired deletes outcomes with timestamps before olderThan.
func (s *SQLiteStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM outcomes WHERE ts < ?", olderThan.UTC().Format(tsLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune outcomes: %w", err)
	}
	return res.RowsAffected()
}

// PurgeAll deletes every outcome and returns how many were removed.
func (s *SQLiteStore) PurgeAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM outcomes")
	if err != nil {
		return 0, fmt.Errorf("purge outcomes: %w", err)
	}
	return res.RowsAffected()
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(timed_out), 0) FROM outcomes",
	).Scan(&stats.TotalOutcomes, &stats.TimedOut)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}

	// Oldest and newest (handle empty DB)
	if stats.TotalOutcomes > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM outcomes").Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("outcome time range: %w", err)
		}
		stats.OldestOutcome, _ = parseTimestamp(oldestStr)
		stats.NewestOutcome, _ = parseTimestamp(newestStr)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("page size: %w", err)
	}
	stats.DatabaseSizeBytes = pageCount * pageSize

	err = s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").
		Scan(&stats.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("schema version: %w", err)
	}

	codes, err := s.db.QueryContext(ctx,
		"SELECT status_code, COUNT(*) AS cnt FROM outcomes GROUP BY status_code ORDER BY cnt DESC, status_code",
	)
	if err != nil {
		return nil, fmt.Errorf("status distribution: %w", err)
	}
	for codes.Next() {
		var sc StatusCount
		if err := codes.Scan(&sc.StatusCode, &sc.Count); err != nil {
			codes.Close()
			return nil, err
		}
		stats.StatusCodes = append(stats.StatusCodes, sc)
	}
	codes.Close()
	if err := codes.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT domain, COUNT(*) AS cnt FROM outcomes GROUP BY domain ORDER BY cnt DESC, domain LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return nil, err
		}
		stats.TopDomains = append(stats.TopDomains, dc)
	}

	return stats, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{s.insertOutcome, s.getOutcome, s.deleteOutcome}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
