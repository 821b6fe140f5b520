package broker

import (
	"context"
	"sync"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
)

// Subscription is an ordered mailbox of one stream's messages. It is meant to
// be drained by a single goroutine.
type Subscription struct {
	broker   *Broker
	streamID string

	mu     sync.Mutex
	queue  []*eventstream.Message
	closed bool
	notify chan struct{}
	once   sync.Once
}

func newSubscription(b *Broker, streamID string) *Subscription {
	return &Subscription{
		broker:   b,
		streamID: streamID,
		notify:   make(chan struct{}, 1),
	}
}

// StreamID returns the subscribed stream id.
func (s *Subscription) StreamID() string {
	return s.streamID
}

func (s *Subscription) push(msg *eventstream.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	s.signal()
}

func (s *Subscription) shut() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until a message is available, the subscription is closed, or
// ctx is done. When the broker closes, already queued messages are still
// returned; ErrClosed follows once they are drained.
func (s *Subscription) Next(ctx context.Context) (*eventstream.Message, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return msg, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrClosed
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Collect returns every message up to and including the stream's terminal
// message.
func (s *Subscription) Collect(ctx context.Context) ([]*eventstream.Message, error) {
	var msgs []*eventstream.Message
	for {
		msg, err := s.Next(ctx)
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
		if msg.Kind.Terminal() {
			return msgs, nil
		}
	}
}

// Close unsubscribes and discards anything still queued. It is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.unsubscribe(s)

		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()

		s.signal()
	})
}
