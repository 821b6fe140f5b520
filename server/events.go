package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/streamrelay/pkg/eventstream/broker"
	"github.com/papercomputeco/streamrelay/pkg/sse"
)

// handleStreamEvents relays a stream's messages as SSE frames: the event type
// is the message kind and the data is the JSON message. The response ends
// after the terminal message.
func (s *Server) handleStreamEvents(c *fiber.Ctx) error {
	id := c.Params("id")

	// Live check first: a stream that finishes between the two calls has
	// already published its terminal message to the broker.
	if !s.streams.Has(id) && !s.events.Known(id) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "stream not found"})
	}

	sub := s.events.Subscribe(id)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// io.Pipe rather than SetBodyStreamWriter: pw.Write blocks until fasthttp
	// has flushed the previous chunk, so each frame reaches the socket as it
	// is written.
	pr, pw := io.Pipe()
	go s.pumpEvents(sub, pw)

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// pumpEvents writes sub's messages to pw until the terminal message, the
// broker closing, or a failed write from a departed client.
func (s *Server) pumpEvents(sub *broker.Subscription, pw *io.PipeWriter) {
	defer pw.Close()
	defer sub.Close()

	logger := s.logger.With("stream_id", sub.StreamID())
	seq := 0

	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.KeepAlive)
		msg, err := sub.Next(ctx)
		cancel()

		if errors.Is(err, context.DeadlineExceeded) {
			if err := sse.WriteComment(pw, "keep-alive"); err != nil {
				logger.Debug("subscriber went away", "error", err)
				return
			}
			continue
		}
		if err != nil {
			return
		}

		data, err := json.Marshal(msg)
		if err != nil {
			logger.Error("encoding stream message", "topic", msg.Topic, "error", err)
			continue
		}

		seq++
		err = sse.WriteEvent(pw, sse.Event{
			ID:   strconv.Itoa(seq),
			Type: string(msg.Kind),
			Data: string(data),
		})
		if err != nil {
			logger.Debug("subscriber went away", "error", err)
			return
		}

		if msg.Kind.Terminal() {
			return
		}
	}
}
