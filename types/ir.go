package types

// ---- IR events (topic "ir/event", not retained) ----

type EventKind string

const (
	EventCode   EventKind = "code"
	EventRepeat EventKind = "repeat"
	EventError  EventKind = "error"
)

// Outcome is what the dispatcher did with an event.
type Outcome string

const (
	OutcomeFired     Outcome = "fired"
	OutcomeDebounced Outcome = "debounced"
	OutcomeUnbound   Outcome = "unbound"
	OutcomeDropped   Outcome = "dropped" // repeat with no live code
	OutcomeIgnored   Outcome = "ignored" // decode errors
	OutcomeFailed    Outcome = "failed"  // effect sink returned an error
)

type IREvent struct {
	Kind    EventKind `json:"kind"`
	Code    string    `json:"code,omitempty"` // 8 upper-case hex digits
	Label   string    `json:"label,omitempty"`
	Error   string    `json:"error,omitempty"` // decode error code
	Outcome Outcome   `json:"outcome"`
	Pulses  int       `json:"pulses"`
	TS      int64     `json:"ts_ms"`
}

// ---- IR counters (topic "ir/stats", retained) ----

type IRStats struct {
	Frames  uint32            `json:"frames"`
	Codes   uint32            `json:"codes"`
	Repeats uint32            `json:"repeats"`
	Errors  uint32            `json:"errors"`
	Fired   uint32            `json:"fired"`
	Drops   uint32            `json:"edge_drops"`
	ByError map[string]uint32 `json:"by_error,omitempty"`
	TS      int64             `json:"ts_ms"`
}
