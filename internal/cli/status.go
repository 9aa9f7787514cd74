package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/navstatus/internal/config"
	"github.com/runnerr0/navstatus/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string            `json:"version"`
	DatabasePath      string            `json:"database_path"`
	DatabaseSizeBytes int64             `json:"database_size_bytes"`
	SchemaVersion     int               `json:"schema_version"`
	TotalOutcomes     int64             `json:"total_outcomes"`
	TimedOut          int64             `json:"timed_out"`
	OldestOutcome     string            `json:"oldest_outcome,omitempty"`
	NewestOutcome     string            `json:"newest_outcome,omitempty"`
	RetentionDays     int               `json:"retention_days"`
	Engine            string            `json:"engine"`
	StatusCodes       []statusCountJSON `json:"status_codes"`
	TopDomains        []domainCountJSON `json:"top_domains"`
	BrowserReachable  bool              `json:"browser_reachable"`
}

type statusCountJSON struct {
	StatusCode int   `json:"status_code"`
	Count      int64 `json:"count"`
}

type domainCountJSON struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(store, cfg)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(store storage.Store, cfg *config.Config) error {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		return err
	}
	dbSize := stats.DatabaseSizeBytes
	if info, err := os.Stat(dbPath); err == nil {
		dbSize = info.Size()
	}

	reachable := checkDebugger(cfg.Browser.DebuggerURL)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, cfg, dbPath, dbSize, reachable)
	}
	return c.printStatusHuman(stats, cfg, dbPath, dbSize, reachable)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, cfg *config.Config, dbPath string, dbSize int64, reachable bool) error {
	fmt.Println("navstatus Status")
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Schema:        v%d\n", stats.SchemaVersion)
	fmt.Printf("Outcomes:      %s\n", formatNumber(stats.TotalOutcomes))

	if stats.TotalOutcomes > 0 {
		pct := float64(stats.TimedOut) / float64(stats.TotalOutcomes) * 100
		fmt.Printf("Timed out:     %s (%.1f%%)\n", formatNumber(stats.TimedOut), pct)
		fmt.Printf("Oldest:        %s\n", stats.OldestOutcome.Local().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestOutcome.Local().Format("2006-01-02"))
	} else {
		fmt.Printf("Timed out:     %s\n", formatNumber(stats.TimedOut))
	}

	fmt.Printf("Retention:     %d days\n", cfg.History.RetentionDays)

	if len(stats.StatusCodes) > 0 {
		fmt.Println()
		fmt.Println("Status Codes:")
		for _, sc := range stats.StatusCodes {
			fmt.Printf("  %-20d %s\n", sc.StatusCode, formatNumber(sc.Count))
		}
	}

	if len(stats.TopDomains) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range stats.TopDomains {
			fmt.Printf("  %-20s %s\n", d.Domain, formatNumber(d.Count))
		}
	}

	fmt.Println()
	fmt.Printf("Engine:        %s\n", cfg.Browser.Engine)
	switch {
	case cfg.Browser.DebuggerURL == "":
		fmt.Println("Browser:       launched per visit")
	case reachable:
		fmt.Printf("Browser:       %s (reachable)\n", cfg.Browser.DebuggerURL)
	default:
		fmt.Printf("Browser:       %s (not reachable)\n", cfg.Browser.DebuggerURL)
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, cfg *config.Config, dbPath string, dbSize int64, reachable bool) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		SchemaVersion:     stats.SchemaVersion,
		TotalOutcomes:     stats.TotalOutcomes,
		TimedOut:          stats.TimedOut,
		RetentionDays:     cfg.History.RetentionDays,
		Engine:            cfg.Browser.Engine,
		StatusCodes:       make([]statusCountJSON, len(stats.StatusCodes)),
		TopDomains:        make([]domainCountJSON, len(stats.TopDomains)),
		BrowserReachable:  reachable,
	}

	if stats.TotalOutcomes > 0 {
		out.OldestOutcome = stats.OldestOutcome.UTC().Format(time.RFC3339)
		out.NewestOutcome = stats.NewestOutcome.UTC().Format(time.RFC3339)
	}

	for i, sc := range stats.StatusCodes {
		out.StatusCodes[i] = statusCountJSON{StatusCode: sc.StatusCode, Count: sc.Count}
	}
	for i, d := range stats.TopDomains {
		out.TopDomains[i] = domainCountJSON{Domain: d.Domain, Count: d.Count}
	}

	return printJSON(out)
}

// checkDebugger queries a remote browser's DevTools version endpoint.
// Returns true if it responds within 1 second.
func checkDebugger(debuggerURL string) bool {
	if debuggerURL == "" {
		return false
	}
	base := debuggerURL
	base = strings.Replace(base, "ws://", "http://", 1)
	base = strings.Replace(base, "wss://", "https://", 1)
	if i := strings.Index(base, "/devtools/"); i >= 0 {
		base = base[:i]
	}

	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(strings.TrimRight(base, "/") + "/json/version")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		if len(s) > remainder {
			result.WriteString(",")
		}
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
