// Package statusmon records the network status codes the engine observes
// for navigated URLs and hands them to the tracker when a load ends.
package statusmon

import (
	"strings"
	"sync"
	"time"
)

// Monitor holds the status codes and load timers of one navigation
// context. It implements tracker.StatusMonitor.
type Monitor struct {
	mu      sync.Mutex
	codes   map[string]int
	started map[string]time.Time
	elapsed map[string]time.Duration
	now     func() time.Time
}

// New returns an empty Monitor.
func New() *Monitor {
	return &Monitor{
		codes:   make(map[string]int),
		started: make(map[string]time.Time),
		elapsed: make(map[string]time.Duration),
		now:     time.Now,
	}
}

// key drops the fragment: it never reaches the server, so it cannot change
// the status.
func key(url string) string {
	if i := strings.IndexByte(url, '#'); i >= 0 {
		return url[:i]
	}
	return url
}

// Record stores the status code received for url. A later response for
// the same URL replaces the earlier one.
func (m *Monitor) Record(url string, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[key(url)] = code
}

// StartTracking starts the load timer for url.
func (m *Monitor) StartTracking(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(url)
	m.started[k] = m.now()
	delete(m.elapsed, k)
}

// StopTracking stops the load timer for url and returns the code recorded
// for it. ok is false when no response was recorded.
func (m *Monitor) StopTracking(url string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(url)
	if start, ok := m.started[k]; ok {
		m.elapsed[k] = m.now().Sub(start)
		delete(m.started, k)
	}
	code, ok := m.codes[k]
	return code, ok
}

// Elapsed returns the duration between StartTracking and StopTracking for
// url, if both happened since the last Clear.
func (m *Monitor) Elapsed(url string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.elapsed[key(url)]
	return d, ok
}

// Clear forgets all codes and timers.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = make(map[string]int)
	m.started = make(map[string]time.Time)
	m.elapsed = make(map[string]time.Duration)
}

// Registry hands out one Monitor per navigation context id.
type Registry struct {
	mu       sync.Mutex
	monitors map[string]*Monitor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{monitors: make(map[string]*Monitor)}
}

// Get returns the Monitor for contextID, creating it on first use.
func (r *Registry) Get(contextID string) *Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[contextID]
	if !ok {
		m = New()
		r.monitors[contextID] = m
	}
	return m
}

// Remove drops the Monitor for contextID.
func (r *Registry) Remove(contextID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.monitors, contextID)
}

// Len returns the number of live monitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.monitors)
}
