package tracker

import "sync"

// Status codes with a fixed meaning. Any other value is a resolved
// HTTP-like code.
const (
	StatusUnset      = -1
	StatusInProgress = 0
	StatusScriptDone = 200
	StatusStopped    = 499
)

// Snapshot is a consistent view of the navigation state taken under one
// lock acquisition.
type Snapshot struct {
	Status     int
	Pending    int
	Superseded bool
	Frame      string
	Episode    uint64
}

// navigationState is the shared record for one navigation context. Every
// field is guarded by mu; status, pending and superseded only ever change
// together inside one critical section.
type navigationState struct {
	mu         sync.Mutex
	status     int
	pending    int
	superseded bool
	frame      string
	episode    uint64
	changed    chan struct{}
}

func newNavigationState() *navigationState {
	return &navigationState{
		status:  StatusUnset,
		changed: make(chan struct{}),
	}
}

// setStatusLocked writes the status and wakes Await callers. mu must be held.
func (s *navigationState) setStatusLocked(code int) {
	if s.status == code {
		return
	}
	s.status = code
	close(s.changed)
	s.changed = make(chan struct{})
}

// recordFrameLocked stores the first frame seen and reports whether frame
// is the recorded one.
func (s *navigationState) recordFrameLocked(frame string) bool {
	if s.frame == "" {
		s.frame = frame
	}
	return s.frame == frame
}

func (s *navigationState) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:     s.status,
		Pending:    s.pending,
		Superseded: s.superseded,
		Frame:      s.frame,
		Episode:    s.episode,
	}
}
