// Package broker provides an in-process eventstream sink that fans stream
// messages out to subscribers.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
)

// DefaultRetain is the number of finished streams whose messages are kept for
// late subscribers.
const DefaultRetain = 64

// ErrClosed is returned by Subscription.Next once the subscription or the
// broker has been closed and the mailbox is drained.
var ErrClosed = errors.New("subscription closed")

// Option configures a Broker.
type Option func(*Broker)

// WithRetain sets how many finished streams are replayable.
func WithRetain(n int) Option {
	return func(b *Broker) {
		if n >= 0 {
			b.retain = n
		}
	}
}

// WithLogger sets the broker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Broker is an eventstream.Publisher that delivers each message to the
// subscribers of its stream. Publish never blocks: every subscription owns an
// unbounded mailbox.
//
// Messages of live streams, and of the most recently finished ones, are kept
// so a subscriber that arrives after a stream started still sees it from the
// beginning.
type Broker struct {
	mu       sync.Mutex
	subs     map[string]map[*Subscription]struct{}
	history  map[string][]*eventstream.Message
	finished []string
	retain   int
	closed   bool
	logger   *slog.Logger
}

// New creates a broker.
func New(opts ...Option) *Broker {
	b := &Broker{
		subs:    make(map[string]map[*Subscription]struct{}),
		history: make(map[string][]*eventstream.Message),
		retain:  DefaultRetain,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish records msg and hands it to every subscriber of msg.StreamID.
func (b *Broker) Publish(_ context.Context, msg *eventstream.Message) error {
	if msg == nil {
		return eventstream.ErrNilMessage
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.logger.Debug("broker closed, dropping message", "topic", msg.Topic)
		return nil
	}

	// A stream ends with exactly one terminal message, so anything after it
	// belongs to a new stream reusing the id.
	if h := b.history[msg.StreamID]; len(h) > 0 && h[len(h)-1].Kind.Terminal() {
		b.forget(msg.StreamID)
	}

	b.history[msg.StreamID] = append(b.history[msg.StreamID], msg)
	if msg.Kind.Terminal() {
		b.finish(msg.StreamID)
	}

	for sub := range b.subs[msg.StreamID] {
		sub.push(msg)
	}

	return nil
}

// finish marks a stream as done and evicts the oldest finished streams beyond
// the retention limit. Caller must hold b.mu.
func (b *Broker) finish(streamID string) {
	b.finished = append(b.finished, streamID)
	for len(b.finished) > b.retain {
		oldest := b.finished[0]
		b.finished = b.finished[1:]
		delete(b.history, oldest)
	}
}

// Reset drops the retained messages of streamID. Live subscriptions stay
// open and receive whatever is published next.
func (b *Broker) Reset(streamID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forget(streamID)
}

// forget removes streamID from the history. Caller must hold b.mu.
func (b *Broker) forget(streamID string) {
	delete(b.history, streamID)
	b.finished = slices.DeleteFunc(b.finished, func(id string) bool { return id == streamID })
}

// Subscribe returns a subscription to streamID. Messages already published
// for that stream are replayed first.
func (b *Broker) Subscribe(streamID string) *Subscription {
	sub := newSubscription(b, streamID)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.closed = true
		return sub
	}

	sub.queue = append(sub.queue, b.history[streamID]...)
	if len(sub.queue) > 0 {
		sub.signal()
	}

	if b.subs[streamID] == nil {
		b.subs[streamID] = make(map[*Subscription]struct{})
	}
	b.subs[streamID][sub] = struct{}{}

	return sub
}

// Known reports whether any message of streamID is retained.
func (b *Broker) Known(streamID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.history[streamID]) > 0
}

// Subscribers returns the number of live subscriptions to streamID.
func (b *Broker) Subscribers(streamID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[streamID])
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.subs[sub.streamID]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.streamID)
	}
}

// Close closes every subscription. Subscribers still drain what was already
// queued. Publishing after Close is a silent no-op.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, set := range b.subs {
		for sub := range set {
			sub.shut()
		}
	}
	b.subs = make(map[string]map[*Subscription]struct{})
	b.history = make(map[string][]*eventstream.Message)
	b.finished = nil

	return nil
}
