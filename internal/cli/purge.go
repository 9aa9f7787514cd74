package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/navstatus/internal/storage"
)

// setDB allows tests to inject a database connection.
func (c *PurgeCommand) setDB(db *sql.DB) {
	c.db = db
}

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	return c.execute(os.Stdin)
}

func (c *PurgeCommand) execute(in io.Reader) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL recorded navigation outcomes.")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	// Open or use injected DB
	db := c.db
	var excluded []string
	if db == nil {
		cfg, err := loadConfig(c.globals)
		if err != nil {
			return err
		}
		store, opened, err := openStore(cfg)
		if err != nil {
			return err
		}
		store.Close()
		defer opened.Close()
		db = opened
		excluded = cfg.History.ExcludeDomains
	}

	store, err := storage.NewSQLiteStore(db, excluded)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	n, err := store.PurgeAll(context.Background())
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"purged":  true,
			"deleted": n,
			"message": "all outcomes deleted",
		})
	}

	fmt.Printf("Purged all data (%s outcome(s)). History is empty.\n", formatNumber(n))
	return nil
}
