package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/streamrelay/pkg/files"
)

// handleEncodeFile base64-encodes the multipart "file" field so clients can
// inline it in a chat message.
func (s *Server) handleEncodeFile(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "multipart field \"file\" is required"})
	}

	f, err := fh.Open()
	if err != nil {
		s.logger.Error("opening upload", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read upload"})
	}
	defer f.Close()

	enc, err := files.Encode(fh.Filename, f, s.config.MaxUploadSize)
	if err != nil {
		if errors.Is(err, files.ErrTooLarge) {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("encoding upload", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read upload"})
	}

	return c.JSON(enc)
}
