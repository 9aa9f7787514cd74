package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/runnerr0/navstatus/internal/config"
	"github.com/runnerr0/navstatus/internal/storage"
)

// pruneJSON is the JSON output structure for the prune command.
type pruneJSON struct {
	Cutoff  string `json:"cutoff"`
	Matched int64  `json:"matched"`
	Deleted int64  `json:"deleted"`
	DryRun  bool   `json:"dry_run"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
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

// executeWithStore prunes a provided store (for testing). --older-than
// overrides history.retention_days; a retention of 0 days disables pruning.
func (c *PruneCommand) executeWithStore(store storage.Store, cfg *config.Config) error {
	var retention time.Duration
	if c.OlderThan != "" {
		d, err := parseDuration(c.OlderThan)
		if err != nil {
			return err
		}
		retention = d
	} else {
		if cfg.History.RetentionDays == 0 {
			fmt.Println("Retention is disabled (history.retention_days: 0); nothing to prune.")
			return nil
		}
		retention = time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	}

	ctx := context.Background()
	cutoff := time.Now().Add(-retention)

	matched, err := store.CountOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	var deleted int64
	if !c.DryRun && matched > 0 {
		deleted, err = store.PruneExpired(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune failed: %w", err)
		}
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(pruneJSON{
			Cutoff:  cutoff.UTC().Format(time.RFC3339),
			Matched: matched,
			Deleted: deleted,
			DryRun:  c.DryRun,
		})
	}

	if c.DryRun {
		fmt.Printf("Dry run: %s outcome(s) older than %s would be pruned.\n",
			formatNumber(matched), formatDurationHuman(retention))
		return nil
	}
	fmt.Printf("Pruned %s outcome(s) older than %s.\n",
		formatNumber(deleted), formatDurationHuman(retention))
	return nil
}
