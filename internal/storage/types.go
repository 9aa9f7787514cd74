package storage

import "time"

// Outcome is the settled result of one tracked navigation.
type Outcome struct {
	ID         string
	Timestamp  time.Time
	ContextID  string
	URL        string
	Domain     string
	StatusCode int
	TimedOut   bool
	Engine     string // "rod", "chromedp", "replay"
	Elapsed    time.Duration
	LoadTime   time.Duration // start to terminal event of URL; zero when unmeasured
	Episode    uint64
}

// SearchQuery defines filters for listing outcomes. Zero values match
// everything.
type SearchQuery struct {
	URLContains string
	Domain      string
	StatusCode  int
	TimedOut    bool // only timed-out outcomes when set
	Since       time.Time
	Until       time.Time
	Limit       int
	Offset      int
}

// Stats holds aggregate statistics about the history database.
type Stats struct {
	TotalOutcomes     int64
	TimedOut          int64
	OldestOutcome     time.Time
	NewestOutcome     time.Time
	DatabaseSizeBytes int64
	SchemaVersion     int
	StatusCodes       []StatusCount
	TopDomains        []DomainCount
}

// StatusCount pairs a status code with the number of outcomes that
// settled on it.
type StatusCount struct {
	StatusCode int
	Count      int64
}

// DomainCount pairs a domain with its outcome count.
type DomainCount struct {
	Domain string
	Count  int64
}
