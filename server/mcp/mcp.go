// Package mcp exposes the relay's stream operations as MCP (Model Context
// Protocol) tools over streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/streamrelay/pkg/eventstream/broker"
	"github.com/papercomputeco/streamrelay/pkg/session"
	"github.com/papercomputeco/streamrelay/pkg/utils"
	"github.com/papercomputeco/streamrelay/relay"
)

// Streams starts, cancels and lists streams. *relay.Relay satisfies it.
type Streams interface {
	Start(ctx context.Context, req relay.StartRequest) (string, error)
	Cancel(id string) bool
	Active() []session.State
}

// Events subscribes to a stream's messages. *broker.Broker satisfies it.
type Events interface {
	Subscribe(streamID string) *broker.Subscription
}

type Config struct {
	Streams Streams

	// Events is required by start_stream calls that wait for the result.
	Events Events

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server with the stream tools registered.
func NewServer(c Config) (*Server, error) {
	if c.Streams == nil {
		return nil, errors.New("streams are required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "relay",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        startStreamToolName,
		Description: startStreamDescription,
	}, s.handleStartStream)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        cancelStreamToolName,
		Description: cancelStreamDescription,
	}, s.handleCancelStream)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listStreamsToolName,
		Description: listStreamsDescription,
	}, s.handleListStreams)

	s.mcpServer = mcpServer

	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
