package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/runnerr0/navstatus/internal/storage"
)

// Execute implements the go-flags Commander interface for ShowCommand.
func (c *ShowCommand) Execute(args []string) error {
	if c.ID == "" {
		return fmt.Errorf("--id is required for show command")
	}

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

// executeWithStore prints one outcome from a provided store (for testing).
func (c *ShowCommand) executeWithStore(store storage.Store) error {
	o, err := store.GetOutcome(context.Background(), c.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("outcome not found: %s", c.ID)
		}
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(toOutcomeJSON(o))
	}

	fmt.Println(o.ID)
	fmt.Printf("URL:       %s\n", o.URL)
	fmt.Printf("Domain:    %s\n", o.Domain)
	fmt.Printf("Status:    %d\n", o.StatusCode)
	fmt.Printf("Timed out: %t\n", o.TimedOut)
	fmt.Printf("Engine:    %s\n", o.Engine)
	fmt.Printf("Elapsed:   %s\n", o.Elapsed.Round(time.Millisecond))
	fmt.Printf("Load time: %s\n", o.LoadTime.Round(time.Millisecond))
	fmt.Printf("Episode:   %d\n", o.Episode)
	fmt.Printf("Context:   %s\n", o.ContextID)
	fmt.Printf("Recorded:  %s\n", o.Timestamp.Local().Format("2006-01-02 15:04:05"))
	return nil
}
