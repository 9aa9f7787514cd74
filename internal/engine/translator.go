// Package engine turns browsing-engine notifications into the two load
// event channels the tracker consumes: page lifecycle and sub-resource
// lifecycle. Live browsers are driven through go-rod or chromedp; recorded
// traces are replayed from YAML.
package engine

import (
	"sync"

	"github.com/runnerr0/navstatus/internal/loadevent"
)

// Dispatcher receives translated events. *tracker.Tracker implements it.
type Dispatcher interface {
	DispatchLoadEvent(ev loadevent.Event)
	DispatchResourceEvent(ev loadevent.Event)
}

// StatusRecorder receives the status codes of document responses.
// *statusmon.Monitor implements it.
type StatusRecorder interface {
	Record(url string, code int)
}

// Error codes carried on failed events.
const (
	ErrorNone     = 0
	ErrorNetwork  = 1
	ErrorCanceled = 2
)

// Request describes a request the browser is about to send.
type Request struct {
	ID       string
	Frame    string
	URL      string
	Document bool
	// RedirectFrom and RedirectStatus describe the response that redirected
	// to URL. RedirectStatus is zero when the request is not a redirect hop.
	RedirectFrom   string
	RedirectStatus int
}

type inflight struct {
	frame    string
	url      string
	document bool
	mimeType string
}

type frameLoad struct {
	url  string
	done bool
}

// Translator maps Chrome DevTools network and page notifications onto
// load events. Document requests drive the page channel; every other
// request drives the resource channel. Safe for concurrent use.
type Translator struct {
	mu       sync.Mutex
	dispatch Dispatcher
	recorder StatusRecorder
	requests map[string]*inflight
	frames   map[string]*frameLoad
}

// NewTranslator returns a Translator feeding d and recording document
// statuses into rec.
func NewTranslator(d Dispatcher, rec StatusRecorder) *Translator {
	return &Translator{
		dispatch: d,
		recorder: rec,
		requests: make(map[string]*inflight),
		frames:   make(map[string]*frameLoad),
	}
}

// RequestWillBeSent handles a new request or a redirect hop of an
// existing one.
func (t *Translator) RequestWillBeSent(r Request) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r.RedirectStatus != 0 {
		if req, ok := t.requests[r.ID]; ok {
			req.url = r.URL
			if req.document {
				t.recorder.Record(r.RedirectFrom, r.RedirectStatus)
				t.frames[req.frame] = &frameLoad{url: r.URL}
				t.dispatch.DispatchLoadEvent(loadevent.Event{
					Frame: req.frame,
					State: loadevent.PageRedirected,
					URL:   r.URL,
				})
			} else {
				t.dispatch.DispatchResourceEvent(loadevent.Event{
					Frame: req.frame,
					State: loadevent.ResourceRedirected,
					URL:   r.URL,
				})
			}
			return
		}
	}

	t.requests[r.ID] = &inflight{frame: r.Frame, url: r.URL, document: r.Document}
	if r.Document {
		t.frames[r.Frame] = &frameLoad{url: r.URL}
		t.dispatch.DispatchLoadEvent(loadevent.Event{
			Frame: r.Frame,
			State: loadevent.PageStarted,
			URL:   r.URL,
		})
		return
	}
	t.dispatch.DispatchResourceEvent(loadevent.Event{
		Frame: r.Frame,
		State: loadevent.ResourceStarted,
		URL:   r.URL,
	})
}

// ResponseReceived notes the response headers of a request. Only document
// statuses are recorded.
func (t *Translator) ResponseReceived(id, url string, status int, mimeType string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.requests[id]
	if !ok {
		return
	}
	req.mimeType = mimeType
	if req.document {
		t.recorder.Record(url, status)
	}
}

// LoadingFinished handles a request whose body fully arrived.
func (t *Translator) LoadingFinished(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.requests[id]
	if !ok {
		return
	}
	delete(t.requests, id)
	ev := loadevent.Event{
		Frame:       req.frame,
		URL:         req.url,
		ContentType: req.mimeType,
		Progress:    1,
	}
	if req.document {
		ev.State = loadevent.ContentReceived
		t.dispatch.DispatchLoadEvent(ev)
		return
	}
	ev.State = loadevent.ResourceFinished
	t.dispatch.DispatchResourceEvent(ev)
}

// LoadingFailed handles a request that failed or was cancelled. A failed
// document ends its frame's load.
func (t *Translator) LoadingFailed(id, errorText string, canceled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, ok := t.requests[id]
	if !ok {
		return
	}
	delete(t.requests, id)
	code := ErrorNetwork
	if canceled {
		code = ErrorCanceled
	}
	ev := loadevent.Event{
		Frame:       req.frame,
		URL:         req.url,
		ContentType: req.mimeType,
		ErrorCode:   code,
	}
	if !req.document {
		ev.State = loadevent.ResourceFailed
		t.dispatch.DispatchResourceEvent(ev)
		return
	}

	if f, ok := t.frames[req.frame]; ok {
		f.done = true
	}
	ev.State = loadevent.LoadFailed
	if canceled {
		ev.State = loadevent.LoadStopped
	}
	t.dispatch.DispatchLoadEvent(ev)
}

// FrameStoppedLoading ends the current load of frame unless its document
// already failed.
func (t *Translator) FrameStoppedLoading(frame string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.frames[frame]
	if !ok || f.done {
		return
	}
	f.done = true
	t.dispatch.DispatchLoadEvent(loadevent.Event{
		Frame:    frame,
		State:    loadevent.PageFinished,
		URL:      f.url,
		Progress: 1,
	})
}

// Pending returns the number of requests still in flight.
func (t *Translator) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}
