// Package server is the relay's HTTP surface: it starts, lists and cancels
// streams, fans a stream's messages out to SSE subscribers, and serves the
// conversation store.
package server

import (
	"context"
	"errors"
	"expvar"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/papercomputeco/streamrelay/pkg/eventstream/broker"
	"github.com/papercomputeco/streamrelay/pkg/session"
	"github.com/papercomputeco/streamrelay/pkg/storage"
	"github.com/papercomputeco/streamrelay/relay"
	relaymcp "github.com/papercomputeco/streamrelay/server/mcp"
)

// Streamer starts and cancels streams. *relay.Relay satisfies it.
type Streamer interface {
	Start(ctx context.Context, req relay.StartRequest) (string, error)
	Cancel(id string) bool
	Has(id string) bool
	Active() []session.State
}

// Events hands out subscriptions to a stream's messages. *broker.Broker
// satisfies it.
type Events interface {
	Subscribe(streamID string) *broker.Subscription
	Known(streamID string) bool
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the relay HTTP server.
type Server struct {
	config  Config
	streams Streamer
	events  Events
	store   storage.Driver
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer wires routes onto a fresh fiber app. store may be nil, in which
// case the conversation routes are not mounted.
func NewServer(config Config, streams Streamer, events Events, store storage.Driver, logger *slog.Logger) (*Server, error) {
	if streams == nil {
		return nil, errors.New("streamer is required")
	}
	if events == nil {
		return nil, errors.New("event source is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	config.setDefaults()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             int(config.MaxUploadSize) + 64<<10,
	})
	app.Use(recover.New())

	s := &Server{
		config:  config,
		streams: streams,
		events:  events,
		store:   store,
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/debug/vars", adaptor.HTTPHandler(expvar.Handler()))

	v1 := app.Group("/v1")
	v1.Post("/streams", s.handleStartStream)
	v1.Get("/streams", s.handleListStreams)
	v1.Delete("/streams/:id", s.handleCancelStream)
	v1.Get("/streams/:id/events", s.handleStreamEvents)
	v1.Post("/files/encode", s.handleEncodeFile)

	if store != nil {
		v1.Get("/conversations", s.handleListConversations)
		v1.Get("/conversations/:id", s.handleGetConversation)
		v1.Get("/conversations/:id/messages", s.handleConversationMessages)
		v1.Delete("/conversations/:id", s.handleDeleteConversation)
	}

	if !config.DisableMCP {
		mcpServer, err := relaymcp.NewServer(relaymcp.Config{
			Streams: streams,
			Events:  events,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// Run starts the server on the configured address and blocks until it stops.
func (s *Server) Run() error {
	s.logger.Info("starting relay server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
