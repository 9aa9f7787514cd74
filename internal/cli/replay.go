package cli

import (
	"context"
	"fmt"

	"github.com/runnerr0/navstatus/internal/config"
	"github.com/runnerr0/navstatus/internal/engine"
	"github.com/runnerr0/navstatus/internal/storage"
)

// Execute implements the go-flags Commander interface for ReplayCommand.
func (c *ReplayCommand) Execute(args []string) error {
	if c.File == "" {
		return fmt.Errorf("--file is required for replay command")
	}

	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	if !c.Record {
		return c.executeWithStore(cfg, nil)
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return c.executeWithStore(cfg, store)
}

// executeWithStore replays the trace and records into store unless it is
// nil (for testing).
func (c *ReplayCommand) executeWithStore(cfg *config.Config, store storage.Store) error {
	trace, err := engine.LoadTrace(c.File)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg, c.globals)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	topts, err := trackerOptions(cfg, trace.Timeout(), log)
	if err != nil {
		return err
	}
	sess := newSession(topts)
	defer sess.Close()

	// Replay delays plus one full settle period, with the same margin for
	// the reset monitor.
	budget := 2 * sess.tracker.Timeout()
	for _, ev := range trace.Events {
		budget += ev.After
	}
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	if err := engine.Replay(ctx, trace, sess.tracker, sess.monitor); err != nil {
		return err
	}
	st, err := sess.wait(ctx)
	if err != nil {
		return err
	}

	outcome := sess.outcome(st, trace.URL, "replay")
	if err := recordOutcome(ctx, store, outcome, log); err != nil {
		return err
	}
	return printOutcome(c.globals, outcome)
}
