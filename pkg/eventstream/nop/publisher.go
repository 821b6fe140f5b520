package nop

import (
	"context"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish validates input and otherwise does nothing.
func (p *Publisher) Publish(_ context.Context, msg *eventstream.Message) error {
	if msg == nil {
		return eventstream.ErrNilMessage
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
