package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Engine names accepted by Open.
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// BrowserOptions configures how a live browser is launched or attached.
type BrowserOptions struct {
	Engine string
	// DebuggerURL attaches to a running browser instead of launching one.
	DebuggerURL string
	// Bin overrides the browser executable.
	Bin               string
	Headless          bool
	NavigationTimeout time.Duration
}

// Driver navigates a live browser whose events feed a Translator.
type Driver interface {
	// Navigate starts loading url in the driver's page.
	Navigate(ctx context.Context, url string) error
	Close() error
}

// Open launches or attaches the browser named by opts.Engine.
func Open(ctx context.Context, opts BrowserOptions, tr *Translator, log *zap.Logger) (Driver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	switch opts.Engine {
	case "", EngineRod:
		return openRod(ctx, opts, tr, log.Named("rod"))
	case EngineChromedp:
		return openChromedp(ctx, opts, tr, log.Named("chromedp"))
	default:
		return nil, fmt.Errorf("unknown engine %q (use %s or %s)", opts.Engine, EngineRod, EngineChromedp)
	}
}
