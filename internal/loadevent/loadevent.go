// Package loadevent classifies raw browsing-engine load notifications.
package loadevent

import "strings"

// State is a raw lifecycle code as reported by the browsing engine.
type State int

// Engine state codes. The numbering follows the WebKit load listener.
const (
	PageStarted         State = 1
	PageFinished        State = 2
	PageRedirected      State = 3
	LoadFailed          State = 4
	LoadStopped         State = 5
	ContentReceived     State = 10
	TitleReceived       State = 11
	IconReceived        State = 12
	ContentTypeReceived State = 13
	DocumentAvailable   State = 14
	ResourceStarted     State = 20
	ResourceRedirected  State = 21
	ResourceFinished    State = 22
	ResourceFailed      State = 23
	ProgressChanged     State = 30
)

// Kind is the semantic meaning of a state code.
type Kind int

const (
	// KindNone marks codes the tracker does not act on.
	KindNone Kind = iota
	KindResourceStarted
	KindResourceFinished
	KindResourceFailed
	KindPageStarted
	KindPageRedirected
	KindDocumentAvailable
	KindPageFinished
	KindLoadFailed
	KindLoadStopped
)

var kindNames = map[Kind]string{
	KindNone:              "none",
	KindResourceStarted:   "resource_started",
	KindResourceFinished:  "resource_finished",
	KindResourceFailed:    "resource_failed",
	KindPageStarted:       "page_started",
	KindPageRedirected:    "page_redirected",
	KindDocumentAvailable: "document_available",
	KindPageFinished:      "page_finished",
	KindLoadFailed:        "load_failed",
	KindLoadStopped:       "load_stopped",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "none"
}

// Classify maps a raw engine state to its semantic kind. Unknown codes
// return KindNone.
func Classify(s State) Kind {
	switch s {
	case ResourceStarted:
		return KindResourceStarted
	case ResourceFinished:
		return KindResourceFinished
	case ResourceFailed:
		return KindResourceFailed
	case PageStarted:
		return KindPageStarted
	case PageRedirected:
		return KindPageRedirected
	case DocumentAvailable:
		return KindDocumentAvailable
	case PageFinished:
		return KindPageFinished
	case LoadFailed:
		return KindLoadFailed
	case LoadStopped:
		return KindLoadStopped
	default:
		return KindNone
	}
}

// ParseState resolves a state by its snake_case name, e.g. "page_started".
// Used by trace files, which may name states instead of numbering them.
func ParseState(name string) (State, bool) {
	s, ok := stateNames[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

var stateNames = map[string]State{
	"page_started":         PageStarted,
	"page_finished":        PageFinished,
	"page_redirected":      PageRedirected,
	"load_failed":          LoadFailed,
	"load_stopped":         LoadStopped,
	"content_received":     ContentReceived,
	"title_received":       TitleReceived,
	"icon_received":        IconReceived,
	"contenttype_received": ContentTypeReceived,
	"document_available":   DocumentAvailable,
	"resource_started":     ResourceStarted,
	"resource_redirected":  ResourceRedirected,
	"resource_finished":    ResourceFinished,
	"resource_failed":      ResourceFailed,
	"progress_changed":     ProgressChanged,
}

// IsStart reports whether k opens or restarts a load episode.
func (k Kind) IsStart() bool {
	return k == KindPageStarted || k == KindPageRedirected || k == KindDocumentAvailable
}

// IsTerminal reports whether k ends a load episode.
func (k Kind) IsTerminal() bool {
	return k == KindPageFinished || k == KindLoadFailed || k == KindLoadStopped
}

// Event is one engine notification. It is transient and never stored.
type Event struct {
	Frame       string
	State       State
	URL         string
	ContentType string
	Progress    float64
	ErrorCode   int
}

// Kind classifies the event's state.
func (e Event) Kind() Kind {
	return Classify(e.State)
}

// IsTransportURL reports whether url uses a network scheme (http or https).
// Other schemes such as data: and about: never reach the network.
func IsTransportURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}
