package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/papercomputeco/streamrelay/pkg/chat"
)

// maxTitleRunes bounds titles derived from message content.
const maxTitleRunes = 60

// Conversation is a stored chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ModelID   string    `json:"model_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a stored chat message. Assistant messages produced by a relayed
// stream use the stream id as their id.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           chat.Role `json:"role"`
	Content        string    `json:"content"`
	TokensUsed     *int      `json:"tokens_used,omitempty"`
	FinishReason   string    `json:"finish_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`

	// Model is recorded on the conversation when AppendMessage creates or
	// touches it. It is not stored per message.
	Model string `json:"-"`
}

// Validate checks the fields every driver requires and fills CreatedAt.
func (m *Message) Validate() error {
	if m == nil {
		return errors.New("cannot store nil message")
	}
	if m.ID == "" {
		return errors.New("message id is required")
	}
	if m.ConversationID == "" {
		return errors.New("conversation id is required")
	}
	if !m.Role.Valid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Validate checks the fields every driver requires and fills timestamps.
func (c *Conversation) Validate() error {
	if c == nil {
		return errors.New("cannot store nil conversation")
	}
	if c.ID == "" {
		return errors.New("conversation id is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return nil
}

// TitleFrom derives a single-line conversation title from message content.
func TitleFrom(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}

	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes-1])) + "…"
}
