package cli

import (
	"database/sql"
	"time"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// VisitCommand: navigate a live browser and report the settled status.
type VisitCommand struct {
	URL         string        `long:"url" description:"URL to navigate to (required)"`
	Engine      string        `long:"engine" description:"Browser driver: rod | chromedp (default from config)"`
	DebuggerURL string        `long:"debugger-url" description:"Attach to a running browser instead of launching one"`
	Timeout     time.Duration `long:"timeout" description:"Settle timeout, e.g. 10s (default from config)"`
	NoRecord    bool          `long:"no-record" description:"Do not write the outcome to history"`

	globals    *GlobalFlags
	version    string
	openDriver driverOpener // injectable for testing; nil means engine.Open
}

// ReplayCommand: feed a recorded event trace through a fresh tracker.
type ReplayCommand struct {
	File   string `long:"file" description:"Trace file (YAML) to replay (required)"`
	Record bool   `long:"record" description:"Write the outcome to history"`

	globals *GlobalFlags
	version string
}

// HistoryCommand: list recorded outcomes with filters.
type HistoryCommand struct {
	URLContains string `long:"url-contains" description:"Only outcomes whose URL contains this text"`
	Domain      string `long:"domain" description:"Only outcomes for this domain"`
	Status      int    `long:"status" description:"Only outcomes with this status code"`
	TimedOut    bool   `long:"timed-out" description:"Only outcomes that hit the settle timeout"`
	Since       string `long:"since" description:"Only outcomes newer than duration (e.g., 7d, 24h, 2w)" default:"30d"`
	Limit       int    `long:"limit" description:"Maximum results" default:"20"`
	Offset      int    `long:"offset" description:"Skip first N results" default:"0"`

	globals *GlobalFlags
	version string
}

// ShowCommand: print one recorded outcome.
type ShowCommand struct {
	ID string `long:"id" description:"Outcome ID (required)"`

	globals *GlobalFlags
	version string
}

// StatusCommand: database stats and status-code distribution.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// PruneCommand: apply TTL pruning to remove old outcomes.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
}

// PurgeCommand: delete ALL outcome history with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	db      *sql.DB // injectable for testing; nil means open default DB
}
