package eventstream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind is the last segment of a stream topic.
type Kind string

const (
	KindOpen      Kind = "open"
	KindChunk     Kind = "chunk"
	KindEnd       Kind = "end"
	KindError     Kind = "error"
	KindCancelled Kind = "cancelled"
)

// topicPrefix namespaces every stream topic.
const topicPrefix = "streams"

// ReasonCancelled is the payload reason for externally cancelled streams.
const ReasonCancelled = "cancelled"

// Terminal reports whether k ends a stream. Exactly one terminal message is
// published per stream.
func (k Kind) Terminal() bool {
	switch k {
	case KindEnd, KindError, KindCancelled:
		return true
	default:
		return false
	}
}

// Topic returns the topic for kind within the stream's namespace, e.g.
// "streams/abc/chunk".
func Topic(streamID string, kind Kind) string {
	return topicPrefix + "/" + streamID + "/" + string(kind)
}

// ParseTopic splits a topic produced by Topic back into its stream id and kind.
func ParseTopic(topic string) (string, Kind, error) {
	rest, ok := strings.CutPrefix(topic, topicPrefix+"/")
	if !ok {
		return "", "", fmt.Errorf("topic %q: missing %q prefix", topic, topicPrefix)
	}

	i := strings.LastIndex(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("topic %q: expected %s/<stream>/<kind>", topic, topicPrefix)
	}

	return rest[:i], Kind(rest[i+1:]), nil
}

// Message is a single published event.
type Message struct {
	Topic     string    `json:"topic"`
	StreamID  string    `json:"stream_id"`
	Kind      Kind      `json:"kind"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

// NewMessage builds a message for the stream, deriving its topic from kind.
func NewMessage(streamID string, kind Kind, payload any) *Message {
	return &Message{
		Topic:     Topic(streamID, kind),
		StreamID:  streamID,
		Kind:      kind,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
}

// PayloadJSON encodes the message payload. A nil payload encodes as {}.
func (m *Message) PayloadJSON() ([]byte, error) {
	if m.Payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.Payload)
}

// OpenPayload is published once the upstream connection is established.
type OpenPayload struct{}

// ChunkPayload carries either a content fragment or, when a frame could not be
// decoded, the raw frame text.
type ChunkPayload struct {
	Content *string `json:"content,omitempty"`
	Raw     *string `json:"raw,omitempty"`
}

// ContentChunk returns a chunk payload for a content fragment.
func ContentChunk(content string) ChunkPayload {
	return ChunkPayload{Content: &content}
}

// RawChunk returns a chunk payload for undecodable frame text.
func RawChunk(raw string) ChunkPayload {
	return ChunkPayload{Raw: &raw}
}

// EndPayload is published when the upstream reports a finish reason.
type EndPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload is published on transport failures.
type ErrorPayload struct {
	Error string `json:"error"`
}

// CancelledPayload is published when a stream is cancelled by the caller.
type CancelledPayload struct {
	Reason string `json:"reason"`
}
