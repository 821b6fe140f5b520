// Package relay streams chat completions from an upstream endpoint and
// republishes them, frame by frame, as stream messages on an event sink.
//
// Start validates a request synchronously, registers its stream id and hands a
// session to the executor; results arrive asynchronously on the publisher
// under the stream's topics. Each stream can be cancelled by id.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/streamrelay/pkg/chat"
	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/session"
	"github.com/papercomputeco/streamrelay/pkg/sse"
	"github.com/papercomputeco/streamrelay/pkg/storage"
	"github.com/papercomputeco/streamrelay/relay/header"
	"github.com/papercomputeco/streamrelay/relay/worker"
)

var (
	// ErrInvalidRequest wraps every synchronous validation failure of Start.
	ErrInvalidRequest = errors.New("invalid stream request")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("relay closed")
)

// StartRequest asks the relay to stream a completion for Messages.
type StartRequest struct {
	// StreamID names the stream's topics and is the handle for Cancel. A
	// random id is generated when empty.
	StreamID string `json:"stream_id,omitempty"`

	// ConversationID, when set and a store is configured, persists the last
	// user message now and the assistant reply when the stream ends.
	ConversationID string `json:"conversation_id,omitempty"`

	Messages []chat.Message `json:"messages"`
}

// completionRequest is the upstream request body.
type completionRequest struct {
	Model    string         `json:"model"`
	Messages []chat.Message `json:"messages"`
	Stream   bool           `json:"stream"`
}

// upstreamState is an immutable snapshot swapped on UpdateUpstream.
type upstreamState struct {
	upstream Upstream
	headers  *header.Handler
}

// Relay starts and tracks streams.
type Relay struct {
	config     Config
	publisher  eventstream.Publisher
	driver     storage.Driver
	workerPool *worker.Pool
	registry   *session.Registry
	executor   session.Executor
	group      *session.Group
	logger     *slog.Logger

	// ctx bounds every session; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	upstream *upstreamState
	closed   bool
}

// Option configures a Relay.
type Option func(*Relay)

// WithExecutor schedules sessions on e instead of one goroutine each.
// Close cannot wait for sessions scheduled elsewhere. With an executor that
// runs tasks inline, Start returns only after the stream has finished.
func WithExecutor(e session.Executor) Option {
	return func(r *Relay) {
		if e != nil {
			r.executor = e
		}
	}
}

// WithRegistry shares a registry between relays.
func WithRegistry(reg *session.Registry) Option {
	return func(r *Relay) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// New creates a Relay. The publisher receives every stream message. The
// driver is optional; without it nothing is persisted.
func New(config Config, publisher eventstream.Publisher, driver storage.Driver, logger *slog.Logger, opts ...Option) (*Relay, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := config.setDefaults(); err != nil {
		return nil, err
	}

	headers, err := header.NewHandler(config.Upstream.Headers)
	if err != nil {
		return nil, fmt.Errorf("could not configure upstream headers: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group := &session.Group{}

	r := &Relay{
		config:    config,
		publisher: publisher,
		driver:    driver,
		registry:  session.NewRegistry(),
		executor:  group,
		group:     group,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		upstream:  &upstreamState{upstream: config.Upstream, headers: headers},
	}
	for _, opt := range opts {
		opt(r)
	}

	if driver != nil {
		wp, err := worker.NewPool(&worker.Config{
			Driver:     driver,
			NumWorkers: config.NumWorkers,
			QueueSize:  config.QueueSize,
			Logger:     logger,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("could not create worker pool: %w", err)
		}
		r.workerPool = wp
	}

	if config.Upstream.APIKey == "" {
		logger.Warn("no upstream API key configured, requests are sent without credentials",
			"endpoint", config.Upstream.Endpoint,
		)
	}

	return r, nil
}

// Start validates req, registers its stream and schedules the session. It
// returns the stream id without waiting for the upstream. Every later outcome,
// including connection failures, is published as a stream message.
//
// ctx only bounds the synchronous part; the stream lives until it ends, is
// cancelled, or the relay is closed.
func (r *Relay) Start(ctx context.Context, req StartRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := chat.Validate(req.Messages); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	// Held until the session is scheduled so Close cannot slip in between.
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return "", ErrClosed
	}
	state := r.upstream

	httpReq, err := r.buildRequest(state, req.Messages)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	id := req.StreamID
	if id == "" {
		id = uuid.NewString()
	}

	sessCtx, cancel := context.WithCancel(r.ctx)
	if err := r.registry.Register(id, cancel); err != nil {
		cancel()
		metrics.Add(metricRejected, 1)
		return "", fmt.Errorf("stream %s: %w", id, err)
	}

	// A reused id must not replay the previous stream to new subscribers.
	if rs, ok := r.publisher.(eventstream.Resetter); ok {
		rs.Reset(id)
	}

	logger := r.logger.With("stream_id", id)
	model := state.upstream.Model

	if req.ConversationID != "" {
		if last, ok := chat.LastOfRole(req.Messages, chat.RoleUser); ok {
			r.persist(id, &storage.Message{
				ID:             uuid.NewString(),
				ConversationID: req.ConversationID,
				Role:           chat.RoleUser,
				Content:        last.Content,
				CreatedAt:      time.Now().UTC(),
				Model:          model,
			})
		}
	}

	sess := session.New(session.Config{
		ID:        id,
		Publisher: r.publisher,
		Registry:  r.registry,
		Logger:    r.logger,
		OnFinish: func(res session.Result) {
			r.finish(res, req.ConversationID, model)
		},
	})

	dial := func(ctx context.Context) session.Source {
		return sse.Connect(ctx, r.config.HTTPClient, httpReq, sse.ClientOptions{
			IdleTimeout: r.config.IdleTimeout,
			Logger:      logger,
		})
	}

	metrics.Add(metricStarted, 1)
	metrics.Add(metricActive, 1)
	logger.Info("stream started",
		"model", model,
		"messages", len(req.Messages),
		"conversation_id", req.ConversationID,
	)

	r.executor.Go(func() {
		defer cancel()
		sess.Run(sessCtx, dial)
	})

	return id, nil
}

// buildRequest constructs the upstream request. A malformed header or
// credential fails here, before anything is registered.
func (r *Relay) buildRequest(state *upstreamState, msgs []chat.Message) (*http.Request, error) {
	headers, err := state.headers.UpstreamRequestHeaders(state.upstream.APIKey)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(completionRequest{
		Model:    state.upstream.Model,
		Messages: msgs,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, state.upstream.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	header.Apply(httpReq, headers)

	return httpReq, nil
}

// finish records the session outcome and persists the assistant reply of a
// completed stream.
func (r *Relay) finish(res session.Result, conversationID, model string) {
	metrics.Add(metricActive, -1)

	switch res.Terminal {
	case eventstream.KindEnd:
		metrics.Add(metricEnded, 1)
	case eventstream.KindCancelled:
		metrics.Add(metricCancelled, 1)
	default:
		metrics.Add(metricFailed, 1)
	}

	r.logger.Info("stream finished",
		"stream_id", res.StreamID,
		"terminal", string(res.Terminal),
		"reason", res.Reason,
		"error", res.Error,
		"duration", res.FinishedAt.Sub(res.StartedAt),
	)

	if conversationID == "" || res.Terminal != eventstream.KindEnd {
		return
	}

	r.persist(res.StreamID, &storage.Message{
		ID:             res.StreamID,
		ConversationID: conversationID,
		Role:           chat.RoleAssistant,
		Content:        res.Content,
		FinishReason:   res.Reason,
		CreatedAt:      res.FinishedAt,
		Model:          model,
	})
}

func (r *Relay) persist(streamID string, msg *storage.Message) {
	if r.workerPool == nil {
		return
	}
	if !r.workerPool.Enqueue(worker.Job{StreamID: streamID, Message: msg}) {
		metrics.Add(metricPersistDropped, 1)
	}
}

// Cancel cancels the stream registered under id and reports whether one was
// live. Cancelling an unknown id is a no-op.
func (r *Relay) Cancel(id string) bool {
	ok := r.registry.Cancel(id)
	r.logger.Debug("cancel requested", "stream_id", id, "found", ok)
	return ok
}

// Has reports whether a stream with id is live.
func (r *Relay) Has(id string) bool {
	return r.registry.Has(id)
}

// Active returns the live streams, oldest first.
func (r *Relay) Active() []session.State {
	return r.registry.Active()
}

// Upstream returns the current upstream configuration without its API key.
func (r *Relay) Upstream() Upstream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u := r.upstream.upstream
	u.APIKey = ""
	return u
}

// UpdateUpstream replaces the upstream for streams started from now on.
// Empty Endpoint and Model fall back to the defaults; running streams are not
// affected.
func (r *Relay) UpdateUpstream(u Upstream) error {
	u.setDefaults()
	if err := u.validate(); err != nil {
		return err
	}

	headers, err := header.NewHandler(u.Headers)
	if err != nil {
		return fmt.Errorf("could not configure upstream headers: %w", err)
	}

	r.mu.Lock()
	r.upstream = &upstreamState{upstream: u, headers: headers}
	r.mu.Unlock()

	r.logger.Info("upstream updated", "endpoint", u.Endpoint, "model", u.Model)
	return nil
}

// Close cancels every live stream, waits for their sessions to publish their
// terminal messages and drains pending persistence jobs. The publisher and
// driver belong to the caller and stay open.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.registry.CancelAll()
	r.cancel()
	r.group.Wait()

	if r.workerPool != nil {
		r.workerPool.Close()
	}

	r.logger.Debug("relay closed")
	return nil
}
