package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/navstatus/internal/storage"
)

// Execute implements the go-flags Commander interface for HistoryCommand.
func (c *HistoryCommand) Execute(args []string) error {
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

	return c.executeWithStore(store)
}

// executeWithStore lists outcomes from a provided store (for testing).
func (c *HistoryCommand) executeWithStore(store storage.Store) error {
	q := storage.SearchQuery{
		URLContains: c.URLContains,
		Domain:      c.Domain,
		StatusCode:  c.Status,
		TimedOut:    c.TimedOut,
		Limit:       c.Limit,
		Offset:      c.Offset,
	}
	if c.Since != "" {
		d, err := parseDuration(c.Since)
		if err != nil {
			return err
		}
		q.Since = time.Now().Add(-d)
	}

	outcomes, err := store.SearchOutcomes(context.Background(), q)
	if err != nil {
		return fmt.Errorf("list outcomes: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]outcomeJSON, len(outcomes))
		for i := range outcomes {
			out[i] = toOutcomeJSON(&outcomes[i])
		}
		return printJSON(out)
	}

	if len(outcomes) == 0 {
		fmt.Println("No outcomes found.")
		return nil
	}

	for _, o := range outcomes {
		flag := ""
		if o.TimedOut {
			flag = " [timeout]"
		}
		fmt.Printf("%s  %s  %3d  %-8s %s%s\n",
			o.ID,
			o.Timestamp.Local().Format("2006-01-02 15:04:05"),
			o.StatusCode,
			o.Engine,
			o.URL,
			flag,
		)
	}
	fmt.Printf("\n%d outcome(s)\n", len(outcomes))
	return nil
}
