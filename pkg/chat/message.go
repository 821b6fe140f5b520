// Package chat holds the conversation message model shared by the relay,
// the record store and the HTTP surface.
package chat

import (
	"errors"
	"fmt"
)

// Role is the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ErrNoMessages is returned when a request carries an empty message list.
var ErrNoMessages = errors.New("at least one message is required")

// InvalidRoleError is returned when a message role is not one of
// user, assistant or system.
type InvalidRoleError struct {
	Index int
	Role  Role
}

func (e InvalidRoleError) Error() string {
	return fmt.Sprintf("message %d: invalid role %q", e.Index, e.Role)
}

// Message is a single role/content pair. Messages are values: once handed to
// the relay they are never mutated.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Valid reports whether r is a role accepted by the upstream endpoint.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// Validate checks that msgs is non-empty and every role is valid.
func Validate(msgs []Message) error {
	if len(msgs) == 0 {
		return ErrNoMessages
	}

	for i, m := range msgs {
		if !m.Role.Valid() {
			return InvalidRoleError{Index: i, Role: m.Role}
		}
	}

	return nil
}

// LastOfRole returns the last message with the given role, if any.
func LastOfRole(msgs []Message, role Role) (Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == role {
			return msgs[i], true
		}
	}
	return Message{}, false
}
