package engine

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/runnerr0/navstatus/internal/loadevent"
)

// Event channels in a trace file.
const (
	ChannelPage     = "page"
	ChannelResource = "resource"
)

// Trace is a recorded navigation: the document statuses the status monitor
// would observe, followed by the engine events in arrival order.
type Trace struct {
	Name      string         `yaml:"name"`
	URL       string         `yaml:"url,omitempty"`
	TimeoutMs int            `yaml:"timeout_ms,omitempty"`
	SkipReset bool           `yaml:"skip_reset,omitempty"`
	Responses map[string]int `yaml:"responses,omitempty"`
	Events    []TraceEvent   `yaml:"events"`
}

// TraceEvent is one engine notification in a trace.
type TraceEvent struct {
	Channel     string        `yaml:"channel"`
	Frame       string        `yaml:"frame,omitempty"`
	State       StateValue    `yaml:"state"`
	URL         string        `yaml:"url,omitempty"`
	ContentType string        `yaml:"content_type,omitempty"`
	Progress    float64       `yaml:"progress,omitempty"`
	Error       int           `yaml:"error,omitempty"`
	After       time.Duration `yaml:"after,omitempty"`
}

// StateValue is a load state written either as its number or its name.
type StateValue loadevent.State

// UnmarshalYAML accepts `state: 2` and `state: page_finished`.
func (s *StateValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: state must be a scalar", node.Line)
	}
	if n, err := strconv.Atoi(node.Value); err == nil {
		*s = StateValue(n)
		return nil
	}
	st, ok := loadevent.ParseState(node.Value)
	if !ok {
		return fmt.Errorf("line %d: unknown state %q", node.Line, node.Value)
	}
	*s = StateValue(st)
	return nil
}

// Timeout returns the trace's settle timeout, or zero when unset.
func (t *Trace) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// Event converts e to the event the tracker consumes.
func (e TraceEvent) Event() loadevent.Event {
	return loadevent.Event{
		Frame:       e.Frame,
		State:       loadevent.State(e.State),
		URL:         e.URL,
		ContentType: e.ContentType,
		Progress:    e.Progress,
		ErrorCode:   e.Error,
	}
}

// ParseTrace decodes a YAML trace and validates its events.
func ParseTrace(data []byte) (*Trace, error) {
	var tr Trace
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse trace: %w", err)
	}
	for i := range tr.Events {
		ev := &tr.Events[i]
		switch ev.Channel {
		case "":
			ev.Channel = ChannelPage
		case ChannelPage, ChannelResource:
		default:
			return nil, fmt.Errorf("event %d: unknown channel %q", i, ev.Channel)
		}
		if ev.After < 0 {
			return nil, fmt.Errorf("event %d: negative delay", i)
		}
	}
	return &tr, nil
}

// LoadTrace reads and parses a trace file.
func LoadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return ParseTrace(data)
}

// Resetter is implemented by dispatchers that can start a fresh episode.
type Resetter interface {
	ResetStatusCode()
}

// Replay feeds trace into d. d is reset first unless the trace skips it;
// recorded responses are then handed to rec, and each event is dispatched
// on its channel after its delay. It returns ctx's error if ctx ends
// before the last event.
func Replay(ctx context.Context, trace *Trace, d Dispatcher, rec StatusRecorder) error {
	if r, ok := d.(Resetter); ok && !trace.SkipReset {
		r.ResetStatusCode()
	}
	if rec != nil {
		for url, code := range trace.Responses {
			rec.Record(url, code)
		}
	}

	for i, te := range trace.Events {
		if te.After > 0 {
			timer := time.NewTimer(te.After)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("replay stopped at event %d: %w", i, ctx.Err())
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return fmt.Errorf("replay stopped at event %d: %w", i, err)
		}

		if te.Channel == ChannelResource {
			d.DispatchResourceEvent(te.Event())
		} else {
			d.DispatchLoadEvent(te.Event())
		}
	}
	return nil
}
