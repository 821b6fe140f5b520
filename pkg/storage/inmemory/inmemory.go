// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/papercomputeco/streamrelay/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding both maps
	mu sync.RWMutex

	// conversations is keyed by conversation id
	conversations map[string]*storage.Conversation

	// messages is keyed by conversation id, in insertion order
	messages map[string][]*storage.Message

	// messageIDs indexes every stored message id for conflict detection
	messageIDs map[string]struct{}
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[string]*storage.Conversation),
		messages:      make(map[string][]*storage.Message),
		messageIDs:    make(map[string]struct{}),
	}
}

// CreateConversation stores a new conversation.
func (d *Driver) CreateConversation(_ context.Context, conv *storage.Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[conv.ID]; ok {
		return storage.ErrConflict
	}

	stored := *conv
	d.conversations[conv.ID] = &stored
	return nil
}

// GetConversation retrieves a conversation by id.
func (d *Driver) GetConversation(_ context.Context, id string) (*storage.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	conv, ok := d.conversations[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "conversation", ID: id}
	}

	c := *conv
	return &c, nil
}

// ListConversations returns all conversations, most recently updated first.
func (d *Driver) ListConversations(_ context.Context) ([]*storage.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	convs := make([]*storage.Conversation, 0, len(d.conversations))
	for _, conv := range d.conversations {
		c := *conv
		convs = append(convs, &c)
	}

	slices.SortFunc(convs, func(a, b *storage.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return convs, nil
}

// AppendMessage stores a message, creating its conversation on demand.
func (d *Driver) AppendMessage(_ context.Context, msg *storage.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.messageIDs[msg.ID]; ok {
		return storage.ErrConflict
	}

	conv, ok := d.conversations[msg.ConversationID]
	if !ok {
		conv = &storage.Conversation{
			ID:        msg.ConversationID,
			Title:     storage.TitleFrom(msg.Content),
			CreatedAt: msg.CreatedAt,
		}
		d.conversations[conv.ID] = conv
	}
	if msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
	}
	if msg.Model != "" {
		conv.ModelID = msg.Model
	}

	stored := *msg
	d.messages[msg.ConversationID] = append(d.messages[msg.ConversationID], &stored)
	d.messageIDs[msg.ID] = struct{}{}
	return nil
}

// Messages returns the messages of a conversation ordered by creation time.
func (d *Driver) Messages(_ context.Context, conversationID string) ([]*storage.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.conversations[conversationID]; !ok {
		return nil, storage.NotFoundError{Kind: "conversation", ID: conversationID}
	}

	msgs := make([]*storage.Message, 0, len(d.messages[conversationID]))
	for _, m := range d.messages[conversationID] {
		c := *m
		msgs = append(msgs, &c)
	}

	slices.SortStableFunc(msgs, func(a, b *storage.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return msgs, nil
}

// DeleteConversation removes a conversation and all of its messages.
func (d *Driver) DeleteConversation(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[id]; !ok {
		return storage.NotFoundError{Kind: "conversation", ID: id}
	}

	for _, m := range d.messages[id] {
		delete(d.messageIDs, m.ID)
	}
	delete(d.messages, id)
	delete(d.conversations, id)
	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
