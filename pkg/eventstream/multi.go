package eventstream

import (
	"context"
	"errors"
)

// multi fans every message out to each publisher.
type multi struct {
	pubs []Publisher
}

// Multi returns a Publisher that publishes to every non-nil publisher in order.
// A failing publisher does not prevent delivery to the others; the errors are
// joined.
func Multi(pubs ...Publisher) Publisher {
	var kept []Publisher
	for _, p := range pubs {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &multi{pubs: kept}
}

func (m *multi) Publish(ctx context.Context, msg *Message) error {
	if msg == nil {
		return ErrNilMessage
	}

	var errs []error
	for _, p := range m.pubs {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multi) Close() error {
	var errs []error
	for _, p := range m.pubs {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reset forwards to every publisher that retains history.
func (m *multi) Reset(streamID string) {
	for _, p := range m.pubs {
		if r, ok := p.(Resetter); ok {
			r.Reset(streamID)
		}
	}
}
