package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/streamrelay/pkg/eventstream"
	"github.com/papercomputeco/streamrelay/pkg/session"
	"github.com/papercomputeco/streamrelay/relay"
)

// StartResponse is returned by POST /v1/streams.
type StartResponse struct {
	StreamID string `json:"stream_id"`

	// Topics maps each message kind to the topic it is published under.
	Topics map[eventstream.Kind]string `json:"topics"`
}

// StreamInfo describes one live stream.
type StreamInfo struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// ListStreamsResponse is returned by GET /v1/streams.
type ListStreamsResponse struct {
	Count   int          `json:"count"`
	Streams []StreamInfo `json:"streams"`
}

var topicKinds = []eventstream.Kind{
	eventstream.KindOpen,
	eventstream.KindChunk,
	eventstream.KindEnd,
	eventstream.KindError,
	eventstream.KindCancelled,
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStartStream starts a stream and answers before the upstream does.
func (s *Server) handleStartStream(c *fiber.Ctx) error {
	var req relay.StartRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	id, err := s.streams.Start(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		case errors.Is(err, session.ErrStreamExists):
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
		case errors.Is(err, relay.ErrClosed):
			return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: err.Error()})
		default:
			s.logger.Error("starting stream", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to start stream"})
		}
	}

	topics := make(map[eventstream.Kind]string, len(topicKinds))
	for _, k := range topicKinds {
		topics[k] = eventstream.Topic(id, k)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartResponse{StreamID: id, Topics: topics})
}

// handleListStreams returns the live streams, oldest first.
func (s *Server) handleListStreams(c *fiber.Ctx) error {
	active := s.streams.Active()

	streams := make([]StreamInfo, 0, len(active))
	for _, st := range active {
		streams = append(streams, StreamInfo{ID: st.ID, StartedAt: st.StartedAt})
	}

	return c.JSON(ListStreamsResponse{Count: len(streams), Streams: streams})
}

// handleCancelStream cancels a stream. Unknown ids are not an error, so the
// answer is always 204.
func (s *Server) handleCancelStream(c *fiber.Ctx) error {
	s.streams.Cancel(c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}
