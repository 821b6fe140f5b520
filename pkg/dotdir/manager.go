// Package dotdir manages the .relay/ and ~/.relay directories that hold the
// relay's config.toml, the chat log and the chat command's resumable
// conversation state.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the relay directory.
const DirName = ".relay"

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .relay/ directory to use, creating
// it if needed. An override wins, then ./.relay when it exists, then
// ~/.relay.
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.resolve(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating relay directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// File returns the path of name inside the Target directory.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) resolve(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, DirName)
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			return local, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}
