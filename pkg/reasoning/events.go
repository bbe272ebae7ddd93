package reasoning

import "time"

// EventType identifies the kind of emitted reasoning event.
type EventType string

const (
	// EventTypeStatus is a regular status line derived from buffered
	// reasoning text, either LLM-generated or a fallback phrase.
	EventTypeStatus EventType = "reasoning_status"

	// EventTypeFinal is the one-shot completion summary emitted by
	// Finalize.
	EventTypeFinal EventType = "reasoning_final"

	// EventTypeHeartbeat is a keepalive repeat of the current phase's
	// first fallback message, emitted during inactivity.
	EventTypeHeartbeat EventType = "reasoning_heartbeat"

	// EventTypeError reports a terminal stream-level failure. The engine
	// itself never emits it — LLM failures degrade to fallbacks — but
	// the delivery layer uses it when a stream is torn down abnormally.
	EventTypeError EventType = "reasoning_error"
)

// Source records where an event's message came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// EventMetadata carries per-event provenance.
type EventMetadata struct {
	RequestID          string `json:"request_id"`
	Timestamp          string `json:"timestamp"` // RFC3339Nano
	Source             Source `json:"source"`
	Provider           string `json:"provider,omitempty"`
	Model              string `json:"model,omitempty"`
	CircuitBreakerOpen bool   `json:"circuit_breaker_open,omitempty"`
}

// Event is one emitted unit on a reasoning stream. Every event carries
// the owning engine's request ID and a timestamp that never decreases
// relative to earlier events from the same engine.
type Event struct {
	Type     EventType     `json:"type"`
	Message  string        `json:"message"`
	Phase    ThinkingPhase `json:"phase"`
	Metadata EventMetadata `json:"metadata"`
}

// Sink receives emitted events. The engine never lets a panicking sink
// corrupt its own state; failures are logged and processing continues.
type Sink func(Event)

// ParseTimestamp converts an event timestamp back to time.Time.
// Useful for consumers that order or age events.
func (m EventMetadata) ParseTimestamp() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, m.Timestamp)
}
