package tracker

import "time"

// StatusMonitor resolves the network status code of a navigated URL. It is
// the only place a real HTTP status enters the tracker.
type StatusMonitor interface {
	// StartTracking notes that a load of url has begun.
	StartTracking(url string)
	// StopTracking ends tracking of url and returns the status recorded for
	// it. ok is false when nothing was recorded.
	StopTracking(url string) (code int, ok bool)
	// Clear drops everything recorded so far.
	Clear()
}

// LoadTimer is implemented by status monitors that time each URL between
// StartTracking and StopTracking.
type LoadTimer interface {
	Elapsed(url string) (time.Duration, bool)
}

// unresolvedMonitor stands in when no StatusMonitor is available. Every
// finished load then reports the synthetic StatusStopped code.
type unresolvedMonitor struct{}

func (unresolvedMonitor) StartTracking(string) {}

func (unresolvedMonitor) StopTracking(string) (int, bool) { return 0, false }

func (unresolvedMonitor) Clear() {}
