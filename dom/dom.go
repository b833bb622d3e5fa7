// Package dom defines the boundary between the automation core and the host page.
//
// The live implementations of these interfaces are provided by the in-page
// agent relay; the Snapshot implementation in this package backs the CLI
// inspection tooling and the tests. Host-page structure is an unstable
// external API: every query degrades to a nil/empty result instead of failing.
package dom

// MutationKind classifies a host-page mutation event.
type MutationKind int

const (
	// MutationNodesAdded reports nodes inserted into the document.
	MutationNodesAdded MutationKind = iota + 1

	// MutationControlChanged reports a form control value change.
	MutationControlChanged
)

// Mutation is a single host-page change notification.
type Mutation struct {
	Kind   MutationKind
	Target Element   // changed control, or the parent of the insertion
	Added  []Element // inserted nodes for MutationNodesAdded

	// Programmatic marks control changes issued by this process rather than
	// the user. User-originated changes permanently disable the server
	// preference side effect.
	Programmatic bool
}

// Element is a handle to a single host-page node.
type Element interface {
	// Tag returns the lowercase tag name.
	Tag() string

	// Attr returns an attribute value and whether it is present.
	Attr(name string) (string, bool)

	// SetAttr writes an attribute on the live node.
	SetAttr(name, value string) error

	// Text returns the concatenated descendant text content.
	Text() string

	// Is reports whether this element itself matches the selector.
	Is(selector string) bool

	// Query returns the first descendant matching the selector, or nil.
	Query(selector string) Element

	// Same reports whether the other handle refers to the identical node.
	// Surface identity changes are detected through this.
	Same(other Element) bool
}

// Media event names as emitted by a native media element.
const (
	MediaEventPlay           = "play"
	MediaEventPause          = "pause"
	MediaEventTimeUpdate     = "timeupdate"
	MediaEventDurationChange = "durationchange"
	MediaEventEnded          = "ended"
)

// MediaEvent is a native media element notification.
type MediaEvent struct {
	Name     string
	Time     float64
	Duration float64
}

// MediaElement is a playback-capable host-page media node.
type MediaElement interface {
	Element

	CurrentTime() (float64, error)
	Duration() (float64, error)
	Paused() (bool, error)

	SetCurrentTime(seconds float64) error
	Play() error
	Pause() error

	// Subscribe starts delivery of media events. The returned cancel func
	// must be called before a replacement subscription is installed.
	Subscribe() (<-chan MediaEvent, func())
}

// Option is a single entry of a host-page selection control.
type Option struct {
	Label string
	Value string
}

// SelectElement is a host-page dropdown control.
type SelectElement interface {
	Element

	Options() []Option
	Value() string

	// SetValue applies a value and fires a programmatic change notification.
	SetValue(value string) error
}

// Message is an inbound cross-boundary message with its origin.
type Message struct {
	Origin string
	Data   []byte
}

// MessagePort is a two-way structured message channel to an embedded frame's
// content window. Delivery order of inbound messages is not guaranteed.
type MessagePort interface {
	// Post sends a payload to the frame. It may fail transiently, e.g. when
	// the content window is gone during a source switch.
	Post(data []byte) error

	// Messages returns the inbound message stream. The channel closes when
	// the port closes.
	Messages() <-chan Message

	Close() error
}

// Document is a handle to the host page.
type Document interface {
	// URL returns the current page address.
	URL() string

	// Query returns the first element matching the selector, or nil.
	// Failures degrade to nil with an error only for transport faults.
	Query(selector string) (Element, error)

	// QueryAll returns every element matching the selector.
	QueryAll(selector string) ([]Element, error)

	// Mutations returns the host-page mutation stream.
	Mutations() <-chan Mutation

	// Navigate performs a full page navigation.
	Navigate(url string) error

	// ShowNotice surfaces a user-facing banner on the page.
	ShowNotice(message string) error
}
