// Package tracker decides when a browser navigation has really finished
// and which status code it finished with.
//
// The engine reports page lifecycle and sub-resource lifecycle on two
// unordered channels. The Tracker folds both into one shared state record
// and hands the final decision to settle monitors, which wait for in-flight
// sub-resources and script traffic to drain (or for a timeout) before they
// publish the status. A newer episode or a reset retires older monitors,
// so only one writer is ever authoritative.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/runnerr0/navstatus/internal/loadevent"
	"go.uber.org/zap"
)

// ErrClosed is returned by Await once the tracker has been closed.
var ErrClosed = errors.New("tracker closed")

const (
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 20 * time.Millisecond
	defaultIdlePolls    = 3
)

// Options configures a Tracker.
type Options struct {
	// ContextID names the navigation context in logs and settlements. A
	// random id is generated when empty.
	ContextID string
	// Timeout bounds how long a settle monitor waits before applying its
	// status anyway.
	Timeout time.Duration
	// PollInterval is how often monitors sample the pending counter.
	PollInterval time.Duration
	// IdlePolls is the number of consecutive idle samples that count as
	// settled.
	IdlePolls int
	// Trace emits every event to Tracer, or to Logger named "trace" when
	// Tracer is nil.
	Trace bool
	// Tracer receives the event trace. See logging.NewTrace.
	Tracer *zap.Logger
	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.Logger
	// OnSettle is called from monitor goroutines after each status write.
	OnSettle func(Settlement)
}

func (o Options) withDefaults() Options {
	if o.ContextID == "" {
		o.ContextID = uuid.NewString()
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.IdlePolls <= 0 {
		o.IdlePolls = defaultIdlePolls
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Tracker tracks the load status of one navigation context.
type Tracker struct {
	id       string
	opts     Options
	log      *zap.Logger
	tracer   *zap.Logger
	endpoint StatusMonitor
	state    *navigationState
	monitors monitorSet
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a Tracker. endpoint may be nil, in which case the tracker
// can only report synthetic codes.
func New(endpoint StatusMonitor, opts Options) *Tracker {
	opts = opts.withDefaults()
	log := opts.Logger.With(zap.String("context", opts.ContextID))
	if endpoint == nil {
		log.Warn("no status monitor available, finished loads will report synthetic codes")
		endpoint = unresolvedMonitor{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		id:       opts.ContextID,
		opts:     opts,
		log:      log,
		endpoint: endpoint,
		state:    newNavigationState(),
		ctx:      ctx,
		cancel:   cancel,
	}
	if opts.Trace {
		t.tracer = opts.Tracer
		if t.tracer == nil {
			t.tracer = opts.Logger.Named("trace")
		}
	}
	return t
}

// ID returns the navigation context id.
func (t *Tracker) ID() string {
	return t.id
}

// Timeout returns the settle timeout in effect.
func (t *Tracker) Timeout() time.Duration {
	return t.opts.Timeout
}

// StatusCode returns the latest settled or in-progress status.
func (t *Tracker) StatusCode() int {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	return t.state.status
}

// Snapshot returns a consistent copy of the navigation state.
func (t *Tracker) Snapshot() Snapshot {
	return t.state.snapshot()
}

// ResetStatusCode starts a fresh tracking episode. Every live monitor is
// cancelled before the new state is installed; a reset monitor is then
// started to catch script-driven loads. It returns immediately.
func (t *Tracker) ResetStatusCode() {
	t.monitors.mu.Lock()
	defer t.monitors.mu.Unlock()

	t.monitors.cancelAllLocked()

	t.state.mu.Lock()
	t.state.superseded = false
	t.state.setStatusLocked(StatusUnset)
	t.state.pending = 0
	t.state.episode++
	episode := t.state.episode
	t.endpoint.Clear()
	t.state.mu.Unlock()

	cancel := t.monitors.spawnLocked(t.ctx, func(ctx context.Context) {
		t.watchScripts(ctx, episode)
	})
	if cancel != nil {
		t.monitors.fromReset = append(t.monitors.fromReset, cancel)
	}
	t.log.Debug("status reset", zap.Uint64("episode", episode))
}

// DispatchResourceEvent applies one sub-resource lifecycle event.
func (t *Tracker) DispatchResourceEvent(ev loadevent.Event) {
	switch ev.Kind() {
	case loadevent.KindResourceStarted:
		t.state.mu.Lock()
		t.state.pending++
		t.state.mu.Unlock()
	case loadevent.KindResourceFinished, loadevent.KindResourceFailed:
		t.state.mu.Lock()
		t.state.pending--
		t.state.mu.Unlock()
	}
	t.trace("Rsrc", ev)
}

// DispatchLoadEvent applies one page lifecycle event.
func (t *Tracker) DispatchLoadEvent(ev loadevent.Event) {
	kind := ev.Kind()
	switch {
	case kind.IsStart():
		t.beginEpisode(ev)
	case kind.IsTerminal():
		t.endEpisode(ev, kind)
	default:
		t.state.mu.Lock()
		t.state.recordFrameLocked(ev.Frame)
		t.state.mu.Unlock()
	}
	t.trace("Page", ev)
}

// beginEpisode handles a start, redirect or document-available event. A
// transport URL on the recorded frame opens a new episode counting the
// document itself; a transport URL on another frame while a load is in
// progress restarts the count without opening one. Other schemes only zero
// the count.
func (t *Tracker) beginEpisode(ev loadevent.Event) {
	t.state.mu.Lock()
	sameFrame := t.state.recordFrameLocked(ev.Frame)
	newEpisode := false
	if sameFrame || t.state.status == StatusInProgress {
		if loadevent.IsTransportURL(ev.URL) {
			t.state.superseded = true
			t.state.setStatusLocked(StatusInProgress)
			if sameFrame {
				t.state.pending = 1
				t.state.episode++
				newEpisode = true
			} else {
				t.state.pending = 0
			}
		} else {
			t.state.pending = 0
		}
	}
	t.state.mu.Unlock()

	if newEpisode {
		t.monitors.cancelFinalize()
	}
	t.endpoint.StartTracking(ev.URL)
}

// endEpisode handles a terminal event on the recorded frame: it resolves
// the candidate status and leaves the write to a finalize monitor.
func (t *Tracker) endEpisode(ev loadevent.Event, kind loadevent.Kind) {
	t.state.mu.Lock()
	sameFrame := t.state.recordFrameLocked(ev.Frame)
	t.state.mu.Unlock()
	if !sameFrame {
		return
	}

	resolved, ok := t.endpoint.StopTracking(ev.URL)
	if !ok {
		resolved = StatusStopped
	}
	var loadTime time.Duration
	if lt, ok := t.endpoint.(LoadTimer); ok {
		loadTime, _ = lt.Elapsed(ev.URL)
	}
	transport := loadevent.IsTransportURL(ev.URL)

	t.state.mu.Lock()
	inProgress := t.state.status == StatusInProgress
	candidate := StatusUnset
	if inProgress || transport {
		candidate = StatusStopped
		if kind == loadevent.KindPageFinished {
			candidate = resolved
		}
		if inProgress && transport {
			t.state.pending--
		}
	}
	task := finalizeTask{
		episode:  t.state.episode,
		url:      ev.URL,
		status:   candidate,
		started:  time.Now(),
		loadTime: loadTime,
	}
	t.state.mu.Unlock()

	t.monitors.mu.Lock()
	defer t.monitors.mu.Unlock()
	t.monitors.cancelFinalizeLocked()
	t.monitors.finalize = t.monitors.spawnLocked(t.ctx, func(ctx context.Context) {
		t.settle(ctx, task)
	})
}

// Await blocks until the status is final, that is neither StatusUnset nor
// StatusInProgress, and returns it. It returns early with the current
// status and ctx's error when ctx ends, or ErrClosed after Close.
func (t *Tracker) Await(ctx context.Context) (int, error) {
	for {
		t.state.mu.Lock()
		status := t.state.status
		changed := t.state.changed
		t.state.mu.Unlock()

		if status != StatusUnset && status != StatusInProgress {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-t.ctx.Done():
			return status, ErrClosed
		case <-changed:
		}
	}
}

// Close cancels every monitor and waits for them to exit. Events
// dispatched afterwards still update the state but start no monitors.
func (t *Tracker) Close() {
	t.cancel()
	t.monitors.close()
}

func (t *Tracker) trace(label string, ev loadevent.Event) {
	if t.tracer == nil {
		return
	}
	t.tracer.Info(label,
		zap.String("context", t.id),
		zap.String("url", ev.URL),
		zap.Int("state", int(ev.State)),
		zap.Float64("progress", ev.Progress),
		zap.Int("error", ev.ErrorCode),
		zap.String("content_type", ev.ContentType),
		zap.String("frame", ev.Frame))
}
