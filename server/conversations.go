package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/streamrelay/pkg/storage"
)

// ListConversationsResponse is returned by GET /v1/conversations.
type ListConversationsResponse struct {
	Count         int                     `json:"count"`
	Conversations []*storage.Conversation `json:"conversations"`
}

// MessagesResponse is returned by GET /v1/conversations/:id/messages.
type MessagesResponse struct {
	ConversationID string             `json:"conversation_id"`
	Count          int                `json:"count"`
	Messages       []*storage.Message `json:"messages"`
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	convs, err := s.store.ListConversations(c.UserContext())
	if err != nil {
		s.logger.Error("listing conversations", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list conversations"})
	}

	return c.JSON(ListConversationsResponse{Count: len(convs), Conversations: convs})
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	conv, err := s.store.GetConversation(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.storeError(c, err, "failed to get conversation")
	}

	return c.JSON(conv)
}

func (s *Server) handleConversationMessages(c *fiber.Ctx) error {
	id := c.Params("id")

	if _, err := s.store.GetConversation(c.UserContext(), id); err != nil {
		return s.storeError(c, err, "failed to get conversation")
	}

	msgs, err := s.store.Messages(c.UserContext(), id)
	if err != nil {
		return s.storeError(c, err, "failed to list messages")
	}

	return c.JSON(MessagesResponse{ConversationID: id, Count: len(msgs), Messages: msgs})
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	if err := s.store.DeleteConversation(c.UserContext(), c.Params("id")); err != nil {
		return s.storeError(c, err, "failed to delete conversation")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// storeError maps not-found errors to 404 and everything else to 500.
func (s *Server) storeError(c *fiber.Ctx, err error, msg string) error {
	if storage.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	}

	s.logger.Error(msg, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msg})
}
