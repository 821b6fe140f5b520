// Package chunk classifies the data payload of a single chat-completion
// stream frame into typed deltas.
//
// The upstream protocol is OpenAI-compatible: every frame carries a JSON
// object with a "choices" array of {delta: {content?}, finish_reason?}, and
// the stream is terminated by the literal sentinel "[DONE]".
package chunk

import (
	"encoding/json"
	"strings"
)

// DoneSentinel is the literal payload that terminates a stream.
const DoneSentinel = "[DONE]"

// ReasonDone is the finish reason reported for the DoneSentinel.
const ReasonDone = "done"

// Kind discriminates a Delta.
type Kind int

const (
	// KindContent carries a content fragment.
	KindContent Kind = iota

	// KindFinish carries a terminal finish reason.
	KindFinish

	// KindRaw carries the unparsed payload when structured decoding fails.
	KindRaw
)

func (k Kind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindFinish:
		return "finish"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Delta is one typed event produced from a frame.
type Delta struct {
	Kind         Kind
	Content      string
	FinishReason string
	Raw          string
}

// streamChunk is the subset of an OpenAI chat.completion.chunk the relay reads.
// Choices is a pointer so a missing key can be told apart from an empty array.
type streamChunk struct {
	Choices *[]streamChoice `json:"choices"`
}

type streamChoice struct {
	Delta struct {
		Content *string `json:"content"`
	} `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Parse maps one frame payload to zero or more deltas. It accepts the bare
// data value as well as a full "data: ..." line. Parse never fails: anything
// that cannot be decoded comes back as a single KindRaw delta carrying the
// original text.
//
// Deltas preserve source order: for each choice, its content fragment (if
// non-empty) precedes its finish reason (if non-empty).
func Parse(line string) []Delta {
	payload := trimDataPrefix(line)

	if strings.TrimSpace(payload) == DoneSentinel {
		return []Delta{{Kind: KindFinish, FinishReason: ReasonDone}}
	}

	var sc streamChunk
	if err := json.Unmarshal([]byte(payload), &sc); err != nil || sc.Choices == nil {
		return []Delta{{Kind: KindRaw, Raw: line}}
	}

	var deltas []Delta
	for _, choice := range *sc.Choices {
		if c := choice.Delta.Content; c != nil && *c != "" {
			deltas = append(deltas, Delta{Kind: KindContent, Content: *c})
		}
		if r := choice.FinishReason; r != nil && *r != "" {
			deltas = append(deltas, Delta{Kind: KindFinish, FinishReason: *r})
		}
	}

	return deltas
}

// trimDataPrefix strips an SSE "data:" field name and its optional single
// leading space.
func trimDataPrefix(line string) string {
	if after, ok := strings.CutPrefix(line, "data:"); ok {
		return strings.TrimPrefix(after, " ")
	}
	return line
}
