package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/papercomputeco/streamrelay/pkg/chat"
)

const chatStateFile = "chat.json"

// ChatState is the conversation "relay chat" resumes on its next run.
type ChatState struct {
	ConversationID string `json:"conversation_id"`

	// Messages is the history in chronological order, oldest first.
	Messages []chat.Message `json:"messages"`
}

// LoadChatState loads chat.json from the target directory.
// Returns nil, nil if there is no saved conversation.
func (m *Manager) LoadChatState(overrideDir string) (*ChatState, error) {
	path, err := m.File(overrideDir, chatStateFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading chat state: %w", err)
	}

	state := &ChatState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing chat state: %w", err)
	}

	return state, nil
}

// SaveChatState writes state to chat.json in the target directory.
func (m *Manager) SaveChatState(state *ChatState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil chat state")
	}

	path, err := m.File(overrideDir, chatStateFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling chat state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing chat state: %w", err)
	}

	return nil
}

// ClearChatState removes chat.json so the next chat starts a new
// conversation. A missing file is not an error.
func (m *Manager) ClearChatState(overrideDir string) error {
	path, err := m.File(overrideDir, chatStateFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing chat state: %w", err)
	}

	return nil
}
