package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/streamrelay/pkg/chat"
	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/relay"
)

const defaultWaitTimeout = 2 * time.Minute

var (
	startStreamToolName    = "start_stream"
	startStreamDescription = "Start streaming a chat completion through the relay. Returns the stream id; with wait=true, blocks until the stream ends and returns the assembled reply."

	cancelStreamToolName    = "cancel_stream"
	cancelStreamDescription = "Cancel a live stream by id. Cancelling an unknown id is not an error."

	listStreamsToolName    = "list_streams"
	listStreamsDescription = "List the streams currently being relayed, oldest first."
)

// StartStreamInput represents the input arguments for the start_stream tool.
type StartStreamInput struct {
	Messages       []chat.Message `json:"messages" jsonschema:"the conversation so far; roles are user, assistant or system"`
	StreamID       string         `json:"stream_id,omitempty" jsonschema:"optional stream id; generated when empty"`
	ConversationID string         `json:"conversation_id,omitempty" jsonschema:"optional conversation id to persist the exchange under"`
	Wait           bool           `json:"wait,omitempty" jsonschema:"block until the stream ends and return its content"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty" jsonschema:"how long to wait when wait is set (default: 120)"`
}

// StartStreamOutput represents the output of the start_stream tool. Only
// StreamID is set unless the call waited.
type StartStreamOutput struct {
	StreamID string `json:"stream_id"`
	Terminal string `json:"terminal,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
	Content  string `json:"content,omitempty"`
}

// CancelStreamInput represents the input arguments for the cancel_stream tool.
type CancelStreamInput struct {
	StreamID string `json:"stream_id" jsonschema:"id of the stream to cancel"`
}

// CancelStreamOutput represents the output of the cancel_stream tool.
type CancelStreamOutput struct {
	StreamID  string `json:"stream_id"`
	Cancelled bool   `json:"cancelled"`
}

// ListStreamsInput takes no arguments.
type ListStreamsInput struct{}

// StreamInfo is one live stream.
type StreamInfo struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// ListStreamsOutput represents the output of the list_streams tool.
type ListStreamsOutput struct {
	Streams []StreamInfo `json:"streams"`
	Count   int          `json:"count"`
}

func (s *Server) handleStartStream(ctx context.Context, _ *mcp.CallToolRequest, input StartStreamInput) (*mcp.CallToolResult, StartStreamOutput, error) {
	logger := s.config.Logger

	if input.Wait && s.config.Events == nil {
		return errorResult("waiting for a stream is not available on this server"), StartStreamOutput{}, nil
	}

	id, err := s.config.Streams.Start(ctx, relay.StartRequest{
		StreamID:       input.StreamID,
		ConversationID: input.ConversationID,
		Messages:       input.Messages,
	})
	if err != nil {
		logger.Debug("MCP start_stream rejected", "error", err)
		return errorResult(fmt.Sprintf("Failed to start stream: %v", err)), StartStreamOutput{}, nil
	}

	output := StartStreamOutput{StreamID: id}
	if !input.Wait {
		return textResult(output)
	}

	timeout := defaultWaitTimeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sub := s.config.Events.Subscribe(id)
	defer sub.Close()

	msgs, err := sub.Collect(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.config.Streams.Cancel(id)
		}
		return errorResult(fmt.Sprintf("Stream %s did not finish: %v", id, err)), output, nil
	}

	summarize(&output, msgs)
	return textResult(output)
}

func (s *Server) handleCancelStream(_ context.Context, _ *mcp.CallToolRequest, input CancelStreamInput) (*mcp.CallToolResult, CancelStreamOutput, error) {
	output := CancelStreamOutput{
		StreamID:  input.StreamID,
		Cancelled: s.config.Streams.Cancel(input.StreamID),
	}
	return textResult(output)
}

func (s *Server) handleListStreams(_ context.Context, _ *mcp.CallToolRequest, _ ListStreamsInput) (*mcp.CallToolResult, ListStreamsOutput, error) {
	active := s.config.Streams.Active()

	output := ListStreamsOutput{Streams: make([]StreamInfo, 0, len(active))}
	for _, st := range active {
		output.Streams = append(output.Streams, StreamInfo{ID: st.ID, StartedAt: st.StartedAt})
	}
	output.Count = len(output.Streams)

	return textResult(output)
}

// summarize folds a finished stream's messages into out.
func summarize(out *StartStreamOutput, msgs []*eventstream.Message) {
	var content strings.Builder

	for _, m := range msgs {
		switch p := m.Payload.(type) {
		case eventstream.ChunkPayload:
			if p.Content != nil {
				content.WriteString(*p.Content)
			}
		case eventstream.EndPayload:
			out.Reason = p.Reason
		case eventstream.CancelledPayload:
			out.Reason = p.Reason
		case eventstream.ErrorPayload:
			out.Error = p.Error
		}
		if m.Kind.Terminal() {
			out.Terminal = string(m.Kind)
		}
	}

	out.Content = content.String()
}

// textResult returns output both structured and as a JSON text block for
// clients that only read content.
func textResult[T any](output T) (*mcp.CallToolResult, T, error) {
	data, err := json.Marshal(output)
	if err != nil {
		var zero T
		return errorResult(fmt.Sprintf("Failed to serialize result: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, output, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
