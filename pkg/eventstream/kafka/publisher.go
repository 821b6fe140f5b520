// Package kafka publishes stream messages to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
)

var (
	// ErrNoBrokers is returned when no broker address is configured.
	ErrNoBrokers = errors.New("kafka: at least one broker is required")

	// ErrNoTopic is returned when no topic is configured.
	ErrNoTopic = errors.New("kafka: topic is required")
)

// Config configures a Publisher.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	var brokers []string
	for _, b := range c.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Brokers = brokers
	c.Topic = strings.TrimSpace(c.Topic)

	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	if c.Topic == "" {
		return ErrNoTopic
	}
	return nil
}

// writer is the subset of *kafkago.Writer the publisher uses.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// envelope is the JSON record value written for each message.
type envelope struct {
	Topic     string          `json:"topic"`
	StreamID  string          `json:"stream_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Publisher writes every message as a JSON record keyed by stream id, so all
// messages of one stream land on the same partition in publish order.
type Publisher struct {
	w      writer
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the publisher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// withWriter replaces the kafka writer. Used by tests.
func withWriter(w writer) Option {
	return func(p *Publisher) {
		p.w = w
	}
}

// NewPublisher creates an asynchronous Kafka publisher. Writes are batched
// in the background; delivery failures are logged, never returned to the
// stream.
func NewPublisher(cfg Config, opts ...Option) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Publisher{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.w == nil {
		batchTimeout := cfg.BatchTimeout
		if batchTimeout <= 0 {
			batchTimeout = 10 * time.Millisecond
		}

		logger := p.logger
		p.w = &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			Async:                  true,
			BatchTimeout:           batchTimeout,
			AllowAutoTopicCreation: true,
			Completion: func(msgs []kafkago.Message, err error) {
				if err != nil {
					logger.Warn("kafka delivery failed", "messages", len(msgs), "error", err)
				}
			},
		}
	}

	return p, nil
}

// Publish encodes msg and hands it to the writer.
func (p *Publisher) Publish(ctx context.Context, msg *eventstream.Message) error {
	if msg == nil {
		return eventstream.ErrNilMessage
	}

	value, err := encode(msg)
	if err != nil {
		return err
	}

	if err := p.w.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(msg.StreamID),
		Value: value,
		Time:  msg.EmittedAt,
	}); err != nil {
		return fmt.Errorf("writing %s to kafka: %w", msg.Topic, err)
	}

	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

func encode(msg *eventstream.Message) ([]byte, error) {
	payload, err := msg.PayloadJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", msg.Topic, err)
	}

	value, err := json.Marshal(envelope{
		Topic:     msg.Topic,
		StreamID:  msg.StreamID,
		Kind:      string(msg.Kind),
		Payload:   payload,
		EmittedAt: msg.EmittedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s envelope: %w", msg.Topic, err)
	}

	return value, nil
}
