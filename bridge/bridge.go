// Package bridge abstracts the two supported playback surfaces behind one
// command/event contract.
//
// Commands are fire-and-forget: there is no response correlation, and query
// answers arrive asynchronously on the event stream, if the surface is alive
// to answer at all. The embedded-frame variant speaks the provider's
// postMessage protocol across the origin boundary; the native variant drives
// a media element directly.
package bridge

import "errors"

// ErrCommandFailed indicates a command that could not be delivered even
// after the retry budget. It is logged and swallowed inside the bridge;
// the constant exists for callers that inspect logged errors in tests.
var ErrCommandFailed = errors.New("bridge command failed")

// Action is a logical player command.
type Action string

const (
	ActionPlay             Action = "play"
	ActionPause            Action = "pause"
	ActionSeek             Action = "seek"
	ActionQueryCurrentTime Action = "getCurrentTime"
	ActionQueryDuration    Action = "getDuration"
	ActionQueryPlayState   Action = "getPlayState"
)

// EventType classifies a normalized inbound surface event.
type EventType int

const (
	EventStarted EventType = iota + 1
	EventPaused
	EventTimeUpdated
	EventDurationKnown
	EventEnded
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventTimeUpdated:
		return "time-updated"
	case EventDurationKnown:
		return "duration-known"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is a single normalized notification from the active surface.
type Event struct {
	Type     EventType
	Time     float64 // playback position for EventTimeUpdated
	Duration float64 // media length for EventDurationKnown
}

// Bridge is the unified control/event channel to a playback surface.
type Bridge interface {
	// Command sends a logical action. Delivery is best-effort with bounded
	// retry; failures never propagate to the caller.
	Command(action Action, value float64)

	Play()
	Pause()
	Seek(seconds float64)

	// Queries are commands too: the answer, when it comes, arrives on the
	// event stream with no ordering guarantee.
	QueryCurrentTime()
	QueryDuration()
	QueryPlayState()

	// Events returns the normalized inbound event stream. The channel closes
	// when the bridge is closed or the surface goes away.
	Events() <-chan Event

	// Close releases the surface handle and stops all delivery. It must be
	// called before a replacement bridge is attached.
	Close() error
}
