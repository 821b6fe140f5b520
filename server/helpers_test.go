package server

import (
	"context"
	"io"
	"net/http"
	"sync"

	. "github.com/onsi/gomega"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/session"
	"github.com/papercomputeco/streamrelay/pkg/sse"
	"github.com/papercomputeco/streamrelay/relay"
)

// fakeStreamer records calls and answers Start with a canned result.
type fakeStreamer struct {
	mu        sync.Mutex
	startErr  error
	started   []relay.StartRequest
	cancelled []string
	live      map[string]bool
	active    []session.State
}

func (f *fakeStreamer) Start(_ context.Context, req relay.StartRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, req)
	if req.StreamID == "" {
		return "generated-id", nil
	}
	return req.StreamID, nil
}

func (f *fakeStreamer) Cancel(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return f.live[id]
}

func (f *fakeStreamer) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[id]
}

func (f *fakeStreamer) Active() []session.State {
	return f.active
}

// readEvents parses an SSE response body into its frames.
func readEvents(resp *http.Response) []sse.Event {
	defer resp.Body.Close()

	var events []sse.Event
	r := sse.NewReader(resp.Body)
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return events
		}
		Expect(err).NotTo(HaveOccurred())
		if ev == nil {
			return events
		}
		events = append(events, *ev)
	}
}

func eventTypes(events []sse.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func scriptedMessages(id string) []*eventstream.Message {
	return []*eventstream.Message{
		eventstream.NewMessage(id, eventstream.KindOpen, eventstream.OpenPayload{}),
		eventstream.NewMessage(id, eventstream.KindChunk, eventstream.ContentChunk("He")),
		eventstream.NewMessage(id, eventstream.KindChunk, eventstream.ContentChunk("llo")),
		eventstream.NewMessage(id, eventstream.KindEnd, eventstream.EndPayload{Reason: "stop"}),
	}
}
