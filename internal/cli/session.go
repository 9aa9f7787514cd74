package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/navstatus/internal/statusmon"
	"github.com/runnerr0/navstatus/internal/storage"
	"github.com/runnerr0/navstatus/internal/tracker"
)

// session is one tracked navigation context: a tracker, its status
// monitor, and the settlements it publishes.
type session struct {
	tracker *tracker.Tracker
	monitor *statusmon.Monitor
	settled chan tracker.Settlement
	started time.Time
}

// publishGrace bounds how long wait looks for the settlement after the
// final status is visible.
const publishGrace = time.Second

// monitors holds the status monitor of every open session.
var monitors = statusmon.NewRegistry()

func newSession(opts tracker.Options) *session {
	if opts.ContextID == "" {
		opts.ContextID = uuid.NewString()
	}
	s := &session{
		monitor: monitors.Get(opts.ContextID),
		settled: make(chan tracker.Settlement, 16),
		started: time.Now(),
	}
	opts.OnSettle = func(st tracker.Settlement) {
		select {
		case s.settled <- st:
		default:
		}
	}
	s.tracker = tracker.New(s.monitor, opts)
	return s
}

func (s *session) Close() {
	s.tracker.Close()
	monitors.Remove(s.tracker.ID())
}

// wait blocks until the navigation settles and returns the settlement
// that produced the final status. If the status writer has not published
// within publishGrace, the settlement is rebuilt from the tracker state.
func (s *session) wait(ctx context.Context) (tracker.Settlement, error) {
	code, err := s.tracker.Await(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tracker.Settlement{}, fmt.Errorf("navigation did not settle (last status %d): %w", code, err)
		}
		return tracker.Settlement{}, err
	}

	grace := time.NewTimer(publishGrace)
	defer grace.Stop()
	for {
		select {
		case st := <-s.settled:
			if st.Status == code {
				return st, nil
			}
		case <-grace.C:
			snap := s.tracker.Snapshot()
			return tracker.Settlement{
				ContextID: s.tracker.ID(),
				Episode:   snap.Episode,
				Status:    code,
				Elapsed:   time.Since(s.started),
			}, nil
		}
	}
}

// outcome turns a settlement into a history row. url is used when the
// settlement carries none, as with script-driven loads. LoadTime comes
// from the status monitor's URL timer and is zero for script-driven loads.
func (s *session) outcome(st tracker.Settlement, url, engineName string) *storage.Outcome {
	if st.URL != "" {
		url = st.URL
	}
	return &storage.Outcome{
		Timestamp:  time.Now(),
		ContextID:  s.tracker.ID(),
		URL:        url,
		StatusCode: st.Status,
		TimedOut:   st.TimedOut,
		Engine:     engineName,
		Elapsed:    time.Since(s.started),
		LoadTime:   st.LoadTime,
		Episode:    st.Episode,
	}
}
