package eventstream

import "context"

// Publisher publishes stream messages to an event sink.
//
// Publish is fire-and-forget from the caller's point of view: implementations
// must not block on slow subscribers, and a returned error is only logged by
// the relay, never surfaced to the stream.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
	Close() error
}

// Resetter is implemented by publishers that retain per-stream history.
// Reset forgets what was kept for streamID so a stream reusing the id starts
// from an empty history.
type Resetter interface {
	Reset(streamID string)
}
