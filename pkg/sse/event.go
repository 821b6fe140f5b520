// Package sse provides a small, purpose-built SSE (Server-Sent Events) toolkit
// for the relay:
//
//   - Reader parses frames from an upstream chat-completion response body.
//   - Client owns the outbound streaming HTTP connection and exposes it as an
//     ordered channel of RawEvents (open, message, error).
//   - WriteEvent encodes frames for downstream subscribers.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// RawEventKind discriminates a RawEvent produced by a Client.
type RawEventKind string

const (
	// KindOpen is emitted once, after a 2xx response arrives and before any
	// message event.
	KindOpen RawEventKind = "open"

	// KindMessage carries the data of one upstream frame.
	KindMessage RawEventKind = "message"

	// KindError carries a transport failure and is always the last event.
	KindError RawEventKind = "error"
)

// RawEvent is one item of a Client's event sequence.
type RawEvent struct {
	Kind RawEventKind
	Data string
}
