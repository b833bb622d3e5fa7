package bridge

import (
	"encoding/json"
	"strconv"
)

// The embed provider's message schema is neither stable nor singular, so the
// bridge hedges in both directions: outbound commands are emitted in every
// envelope shape the provider has been observed to accept, and inbound
// messages are normalized by probing the known field spellings.

// commandEnvelope is the primary outbound shape.
type commandEnvelope struct {
	Command string   `json:"command"`
	Value   *float64 `json:"value,omitempty"`
}

// methodEnvelope is the alternate outbound shape.
type methodEnvelope struct {
	Method string    `json:"method"`
	Params []float64 `json:"params"`
}

// encodeEnvelopes renders one logical action in all outbound shapes.
func encodeEnvelopes(action Action, value float64) [][]byte {
	var v *float64
	params := []float64{}
	if action == ActionSeek {
		v = &value
		params = []float64{value}
	}

	first, _ := json.Marshal(commandEnvelope{Command: string(action), Value: v})
	second, _ := json.Marshal(methodEnvelope{Method: string(action), Params: params})
	return [][]byte{first, second}
}

// Inbound field spellings, tried in order.
var (
	tagFields      = []string{"event", "type", "name"}
	timeFields     = []string{"time", "currentTime", "position"}
	durationFields = []string{"duration", "length"}
)

// Event tags the provider is known to emit, mapped to normalized types.
var inboundTags = map[string]EventType{
	"play":           EventStarted,
	"playing":        EventStarted,
	"started":        EventStarted,
	"video_start":    EventStarted,
	"pause":          EventPaused,
	"paused":         EventPaused,
	"timeupdate":     EventTimeUpdated,
	"progress":       EventTimeUpdated,
	"time":           EventTimeUpdated,
	"durationchange": EventDurationKnown,
	"loadedmetadata": EventDurationKnown,
	"duration":       EventDurationKnown,
	"ended":          EventEnded,
	"video_end":      EventEnded,
	"end":            EventEnded,
}

// normalizeInbound maps a raw cross-boundary payload onto the unified event
// model. Unrecognizable payloads are dropped, not errors: the window-level
// stream carries arbitrary third-party traffic.
func normalizeInbound(data []byte) (Event, bool) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return Event{}, false
	}

	tag, ok := firstString(fields, tagFields)
	if !ok {
		return Event{}, false
	}

	eventType, ok := inboundTags[tag]
	if !ok {
		return Event{}, false
	}

	ev := Event{Type: eventType}
	if t, ok := firstNumber(fields, timeFields); ok {
		ev.Time = t
	}
	if d, ok := firstNumber(fields, durationFields); ok {
		ev.Duration = d
	}
	return ev, true
}

func firstString(fields map[string]any, names []string) (string, bool) {
	for _, name := range names {
		if s, ok := fields[name].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// firstNumber extracts a numeric field, tolerating string-encoded numbers.
func firstNumber(fields map[string]any, names []string) (float64, bool) {
	for _, name := range names {
		switch v := fields[name].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
