// Package session drives a single relayed stream: it consumes the upstream's
// raw SSE events, classifies each frame with the chunk parser and publishes
// the resulting messages on the stream's topics.
//
// A session moves through
//
//	Idle → Connecting → Streaming → Terminating → Closed
//
// and publishes exactly one terminal message (end, error or cancelled) no
// matter how it ends. Cleanup (closing the upstream connection and removing
// the stream from the Registry) runs exactly once, from Finalize.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/streamrelay/pkg/chunk"
	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/sse"
)

// ErrClosedEarly is reported when the upstream ends the body before sending a
// finish reason or the done sentinel.
var ErrClosedEarly = errors.New("stream closed before completion")

// Phase is a session lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseStreaming
	PhaseTerminating
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseStreaming:
		return "streaming"
	case PhaseTerminating:
		return "terminating"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Source is a live upstream event sequence. *sse.Client satisfies it.
type Source interface {
	Events() <-chan sse.RawEvent
	Close() error
}

// Dialer opens the upstream connection for a session.
type Dialer func(ctx context.Context) Source

// Result summarizes a finished session.
type Result struct {
	StreamID string

	// Terminal is the kind of the terminal message that was published.
	Terminal eventstream.Kind

	// Reason is the finish reason for end, or the cancellation reason.
	Reason string

	// Error is the error message for error terminals.
	Error string

	// Content is the concatenation of every content fragment published.
	Content string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Config holds a session's collaborators.
type Config struct {
	ID        string
	Publisher eventstream.Publisher

	// Registry, if set, has the session removed from it on Finalize.
	Registry *Registry

	// OnFinish, if set, is called once from Finalize with the outcome.
	OnFinish func(Result)

	Logger *slog.Logger
}

// Session is the state machine of one stream. Step, Fail, Cancel and
// Finalize must be called from a single goroutine (Run does so); Finalize
// alone may be called more than once.
type Session struct {
	id       string
	pub      eventstream.Publisher
	registry *Registry
	onFinish func(Result)
	logger   *slog.Logger

	phase   Phase
	source  Source
	content strings.Builder
	result  Result

	finalizeOnce sync.Once
}

// New creates an idle session.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Session{
		id:       cfg.ID,
		pub:      cfg.Publisher,
		registry: cfg.Registry,
		onFinish: cfg.OnFinish,
		logger:   logger.With("stream_id", cfg.ID),
		result: Result{
			StreamID:  cfg.ID,
			StartedAt: time.Now().UTC(),
		},
	}
}

// ID returns the stream id.
func (s *Session) ID() string {
	return s.id
}

// Phase returns the current lifecycle state.
func (s *Session) Phase() Phase {
	return s.phase
}

// Result returns the outcome so far. It is complete once the session is
// closed.
func (s *Session) Result() Result {
	r := s.result
	r.Content = s.content.String()
	return r
}

// Run connects through dial and consumes the upstream until a terminal
// message is published or ctx is cancelled, then finalizes. Cancellation of
// ctx publishes a cancelled terminal and closes the upstream connection
// without waiting for it to finish.
func (s *Session) Run(ctx context.Context, dial Dialer) {
	defer s.Finalize()

	s.Attach(dial(ctx))
	events := s.source.Events()

	for {
		if ctx.Err() != nil {
			s.Cancel()
			return
		}

		select {
		case <-ctx.Done():
			s.Cancel()
			return

		case ev, ok := <-events:
			if !ok {
				s.Fail(ErrClosedEarly.Error())
				return
			}
			if s.Step(ev) {
				return
			}
		}
	}
}

// Attach moves an idle session to Connecting with src as its upstream.
func (s *Session) Attach(src Source) {
	if s.phase != PhaseIdle {
		return
	}
	s.source = src
	s.transition(PhaseConnecting)
}

// Step applies one raw upstream event and reports whether the session has
// reached a terminal state.
func (s *Session) Step(ev sse.RawEvent) bool {
	if s.phase >= PhaseTerminating {
		return true
	}

	switch ev.Kind {
	case sse.KindOpen:
		if s.phase < PhaseStreaming {
			s.transition(PhaseStreaming)
			s.publish(eventstream.KindOpen, eventstream.OpenPayload{})
		}
		return false

	case sse.KindMessage:
		if s.phase < PhaseStreaming {
			s.transition(PhaseStreaming)
		}
		return s.handleFrame(ev.Data)

	case sse.KindError:
		s.Fail(ev.Data)
		return true

	default:
		s.logger.Warn("ignoring unknown upstream event", "kind", string(ev.Kind))
		return false
	}
}

func (s *Session) handleFrame(data string) bool {
	for _, d := range chunk.Parse(data) {
		switch d.Kind {
		case chunk.KindContent:
			s.content.WriteString(d.Content)
			s.publish(eventstream.KindChunk, eventstream.ContentChunk(d.Content))

		case chunk.KindRaw:
			s.logger.Debug("undecodable upstream frame", "raw", d.Raw)
			s.publish(eventstream.KindChunk, eventstream.RawChunk(d.Raw))

		case chunk.KindFinish:
			s.terminate(eventstream.KindEnd, eventstream.EndPayload{Reason: d.FinishReason})
			s.result.Reason = d.FinishReason
			return true
		}
	}
	return false
}

// Fail publishes an error terminal unless the session already terminated.
func (s *Session) Fail(msg string) {
	if s.terminate(eventstream.KindError, eventstream.ErrorPayload{Error: msg}) {
		s.result.Error = msg
	}
}

// Cancel publishes a cancelled terminal unless the session already
// terminated.
func (s *Session) Cancel() {
	if s.terminate(eventstream.KindCancelled, eventstream.CancelledPayload{Reason: eventstream.ReasonCancelled}) {
		s.result.Reason = eventstream.ReasonCancelled
	}
}

// terminate publishes the terminal message and reports whether it did so.
func (s *Session) terminate(kind eventstream.Kind, payload any) bool {
	if s.phase >= PhaseTerminating {
		return false
	}

	s.transition(PhaseTerminating)
	s.result.Terminal = kind
	s.publish(kind, payload)
	return true
}

// Finalize closes the upstream connection, removes the stream from the
// registry and reports the result. A session that never terminated is
// reported as failed first, so every session ends with one terminal message.
// Only the first call has any effect.
func (s *Session) Finalize() {
	s.finalizeOnce.Do(func() {
		if s.phase < PhaseTerminating {
			s.Fail(ErrClosedEarly.Error())
		}

		if s.source != nil {
			if err := s.source.Close(); err != nil {
				s.logger.Warn("closing upstream", "error", err)
			}
		}

		if s.registry != nil {
			s.registry.Remove(s.id)
		}

		s.transition(PhaseClosed)
		s.result.FinishedAt = time.Now().UTC()

		s.logger.Debug("stream finished",
			"terminal", string(s.result.Terminal),
			"duration", s.result.FinishedAt.Sub(s.result.StartedAt),
		)

		if s.onFinish != nil {
			s.onFinish(s.Result())
		}
	})
}

func (s *Session) transition(to Phase) {
	s.logger.Debug("stream state", "from", s.phase.String(), "to", to.String())
	s.phase = to
}

// publish hands msg to the sink. Delivery failures are logged; the stream
// carries on regardless.
func (s *Session) publish(kind eventstream.Kind, payload any) {
	if s.pub == nil {
		return
	}

	msg := eventstream.NewMessage(s.id, kind, payload)
	if err := s.pub.Publish(context.Background(), msg); err != nil {
		s.logger.Warn("publishing stream message", "topic", msg.Topic, "error", err)
	}
}
