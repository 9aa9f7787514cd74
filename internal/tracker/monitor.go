package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Settlement describes one status write made by a settle monitor.
type Settlement struct {
	ContextID string
	Episode   uint64
	URL       string
	Status    int
	TimedOut  bool
	Elapsed   time.Duration

	// LoadTime is the time between the start and terminal event of URL,
	// when the status monitor is a LoadTimer. Zero otherwise.
	LoadTime time.Duration
}

type waitResult int

const (
	waitPending waitResult = iota
	waitSettled
	waitTimedOut
	waitCancelled
	waitAbandoned
)

// monitorSet owns every live monitor goroutine of one tracker. Monitors
// spawned by a reset are kept apart from the single finalize monitor so a
// new episode can retire the finalize monitor alone.
type monitorSet struct {
	mu        sync.Mutex
	wg        sync.WaitGroup
	fromReset []context.CancelFunc
	finalize  context.CancelFunc
	closed    bool
}

// spawnLocked runs fn on its own goroutine under a cancellable context
// derived from parent. It returns nil once the set is closed. m.mu must be
// held.
func (m *monitorSet) spawnLocked(parent context.Context, fn func(ctx context.Context)) context.CancelFunc {
	if m.closed {
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		fn(ctx)
	}()
	return cancel
}

// cancelAllLocked interrupts every live monitor. m.mu must be held.
func (m *monitorSet) cancelAllLocked() {
	for _, cancel := range m.fromReset {
		cancel()
	}
	m.fromReset = nil
	m.cancelFinalizeLocked()
}

func (m *monitorSet) cancelFinalizeLocked() {
	if m.finalize != nil {
		m.finalize()
		m.finalize = nil
	}
}

func (m *monitorSet) cancelFinalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelFinalizeLocked()
}

// close cancels all monitors, refuses new ones and waits for the live ones
// to return.
func (m *monitorSet) close() {
	m.mu.Lock()
	m.closed = true
	m.cancelAllLocked()
	m.mu.Unlock()
	m.wg.Wait()
}

// finalizeTask is the candidate outcome of an episode that reached a
// terminal event.
type finalizeTask struct {
	episode  uint64
	url      string
	status   int
	started  time.Time
	loadTime time.Duration
}

// waitForIdle polls the pending counter until it has stayed at or below
// zero for IdlePolls consecutive polls, the deadline passes, or ctx ends.
// A negative counter counts as idle.
func (t *Tracker) waitForIdle(ctx context.Context, deadline *time.Timer) waitResult {
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	idle := 0
	for {
		select {
		case <-ctx.Done():
			return waitCancelled
		case <-deadline.C:
			return waitTimedOut
		case <-ticker.C:
			t.state.mu.Lock()
			pending := t.state.pending
			t.state.mu.Unlock()
			if pending <= 0 {
				idle++
			} else {
				idle = 0
			}
			if idle >= t.opts.IdlePolls {
				return waitSettled
			}
		}
	}
}

// settle is the finalize monitor. It applies the candidate status once the
// episode's outstanding work drains or the timeout passes, unless a newer
// episode or a reset has taken over in the meantime.
func (t *Tracker) settle(ctx context.Context, task finalizeTask) {
	deadline := time.NewTimer(t.opts.Timeout)
	defer deadline.Stop()

	result := t.waitForIdle(ctx, deadline)
	if result == waitCancelled {
		t.log.Debug("finalize monitor cancelled",
			zap.Uint64("episode", task.episode), zap.String("url", task.url))
		return
	}

	t.state.mu.Lock()
	if ctx.Err() != nil || t.state.episode != task.episode {
		t.state.mu.Unlock()
		t.log.Debug("finalize monitor superseded",
			zap.Uint64("episode", task.episode), zap.String("url", task.url))
		return
	}
	if task.status != StatusUnset {
		t.state.setStatusLocked(task.status)
	}
	t.endpoint.Clear()
	t.state.mu.Unlock()

	if task.status == StatusUnset {
		return
	}
	timedOut := result == waitTimedOut
	if timedOut {
		t.log.Warn("settle timeout, applying status anyway",
			zap.String("url", task.url),
			zap.Int("status", task.status),
			zap.Duration("timeout", t.opts.Timeout))
	}
	t.publish(Settlement{
		ContextID: t.id,
		Episode:   task.episode,
		URL:       task.url,
		Status:    task.status,
		TimedOut:  timedOut,
		Elapsed:   time.Since(task.started),
		LoadTime:  task.loadTime,
	})
}

// watchScripts is the reset monitor. It detects loads driven purely by
// script traffic, which the engine never reports as a page episode: when
// resources start while no episode has begun, the status goes in-progress
// and is settled to StatusScriptDone once the traffic drains. It exits as
// soon as an engine-reported episode supersedes it.
func (t *Tracker) watchScripts(ctx context.Context, episode uint64) {
	started := time.Now()
	deadline := time.NewTimer(t.opts.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	active := false
	idle := 0
	for {
		var result waitResult
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			result = waitTimedOut
		case <-ticker.C:
			result = t.pollScripts(ctx, episode, &active, &idle)
		}

		switch result {
		case waitAbandoned:
			return
		case waitTimedOut:
			if !t.applyScriptDone(ctx, episode, active) {
				return
			}
		case waitSettled:
		default:
			continue
		}
		t.publish(Settlement{
			ContextID: t.id,
			Episode:   episode,
			Status:    StatusScriptDone,
			TimedOut:  result == waitTimedOut,
			Elapsed:   time.Since(started),
		})
		return
	}
}

// pollScripts runs one reset-monitor poll. It returns waitSettled after
// writing StatusScriptDone, waitAbandoned when the monitor has nothing
// left to do, and waitPending otherwise.
func (t *Tracker) pollScripts(ctx context.Context, episode uint64, active *bool, idle *int) waitResult {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()

	if ctx.Err() != nil || t.state.superseded || t.state.episode != episode {
		return waitAbandoned
	}
	if t.state.pending > 0 {
		if !*active {
			t.log.Debug("script-driven load detected", zap.Int("pending", t.state.pending))
		}
		*active = true
		*idle = 0
		t.state.setStatusLocked(StatusInProgress)
		return waitPending
	}
	if !*active {
		return waitPending
	}
	*idle++
	if *idle < t.opts.IdlePolls {
		return waitPending
	}
	t.state.setStatusLocked(StatusScriptDone)
	return waitSettled
}

// applyScriptDone writes StatusScriptDone at the deadline if script
// activity was seen and nothing has taken over since.
func (t *Tracker) applyScriptDone(ctx context.Context, episode uint64, active bool) bool {
	if !active {
		return false
	}
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if ctx.Err() != nil || t.state.superseded || t.state.episode != episode {
		return false
	}
	t.log.Warn("script-driven load timed out, applying status anyway",
		zap.Int("pending", t.state.pending), zap.Duration("timeout", t.opts.Timeout))
	t.state.setStatusLocked(StatusScriptDone)
	return true
}

func (t *Tracker) publish(s Settlement) {
	t.log.Debug("navigation settled",
		zap.Uint64("episode", s.Episode),
		zap.String("url", s.URL),
		zap.Int("status", s.Status),
		zap.Bool("timed_out", s.TimedOut),
		zap.Duration("elapsed", s.Elapsed))
	if t.opts.OnSettle != nil {
		t.opts.OnSettle(s)
	}
}
