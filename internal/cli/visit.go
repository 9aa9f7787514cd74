package cli

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/navstatus/internal/config"
	"github.com/runnerr0/navstatus/internal/engine"
	"github.com/runnerr0/navstatus/internal/storage"
)

// driverOpener matches engine.Open.
type driverOpener func(ctx context.Context, opts engine.BrowserOptions, tr *engine.Translator, log *zap.Logger) (engine.Driver, error)

// Execute implements the go-flags Commander interface for VisitCommand.
func (c *VisitCommand) Execute(args []string) error {
	if c.URL == "" {
		return fmt.Errorf("--url is required for visit command")
	}

	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}

	if c.NoRecord {
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

// executeWithStore runs the visit and records into store unless it is nil
// (for testing).
func (c *VisitCommand) executeWithStore(cfg *config.Config, store storage.Store) error {
	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" {
		return fmt.Errorf("invalid URL: %s", c.URL)
	}

	log, err := newLogger(cfg, c.globals)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	opts := engine.BrowserOptions{
		Engine:            cfg.Browser.Engine,
		DebuggerURL:       cfg.Browser.DebuggerURL,
		Bin:               cfg.Browser.Bin,
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.Browser.NavigationTimeout(),
	}
	if c.Engine != "" {
		opts.Engine = c.Engine
	}
	if opts.Engine == "" {
		opts.Engine = engine.EngineRod
	}
	if c.DebuggerURL != "" {
		opts.DebuggerURL = c.DebuggerURL
	}

	topts, err := trackerOptions(cfg, c.Timeout, log)
	if err != nil {
		return err
	}
	sess := newSession(topts)
	defer sess.Close()

	// The wait covers the slowest navigation plus one full settle period.
	ctx, cancel := context.WithTimeout(context.Background(), opts.NavigationTimeout+sess.tracker.Timeout())
	defer cancel()

	open := c.openDriver
	if open == nil {
		open = engine.Open
	}
	drv, err := open(ctx, opts, engine.NewTranslator(sess.tracker, sess.monitor), log)
	if err != nil {
		return err
	}
	defer drv.Close()

	sess.tracker.ResetStatusCode()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A failed navigation still settles through the load events.
		if err := drv.Navigate(gctx, c.URL); err != nil {
			log.Warn("navigation reported an error", zap.String("url", c.URL), zap.Error(err))
		}
		return nil
	})
	var outcome *storage.Outcome
	g.Go(func() error {
		st, err := sess.wait(gctx)
		if err != nil {
			return err
		}
		outcome = sess.outcome(st, c.URL, opts.Engine)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := recordOutcome(ctx, store, outcome, log); err != nil {
		return err
	}
	return printOutcome(c.globals, outcome)
}
