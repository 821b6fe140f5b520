// Package storage defines the record store for relayed conversations.
package storage

import (
	"context"
)

// Driver defines the interface for persisting and retrieving conversations and
// their messages in a storage backend.
type Driver interface {
	// CreateConversation stores a new conversation. Returns ErrConflict if a
	// conversation with the same id already exists.
	CreateConversation(ctx context.Context, conv *Conversation) error

	// GetConversation retrieves a conversation by id.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// ListConversations returns all conversations, most recently updated first.
	ListConversations(ctx context.Context) ([]*Conversation, error)

	// AppendMessage stores a message, creating its conversation on demand and
	// bumping the conversation's updated_at. Returns ErrConflict if a message
	// with the same id already exists.
	AppendMessage(ctx context.Context, msg *Message) error

	// Messages returns the messages of a conversation ordered by creation time.
	Messages(ctx context.Context, conversationID string) ([]*Message, error)

	// DeleteConversation removes a conversation and all of its messages.
	DeleteConversation(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
