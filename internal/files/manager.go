package files

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Manager owns scratch directories created while reading archives
type Manager struct {
	mu      sync.Mutex
	tempDir string
	dirs    []string
}

// NewManager creates a manager whose scratch directories live under
// tempDir, or the system default when empty
func NewManager(tempDir string) *Manager {
	return &Manager{tempDir: tempDir}
}

// ScratchDir creates a new scratch directory that Cleanup removes
func (m *Manager) ScratchDir(pattern string) (string, error) {
	dir, err := os.MkdirTemp(m.tempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	m.mu.Lock()
	m.dirs = append(m.dirs, dir)
	m.mu.Unlock()

	slog.Debug("Created scratch directory", slog.String("path", dir))
	return dir, nil
}

// Cleanup removes every scratch directory. It is safe to call repeatedly.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	dirs := m.dirs
	m.dirs = nil
	m.mu.Unlock()

	var firstErr error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// EnsureDirectory creates a directory if it doesn't exist
func EnsureDirectory(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0755)
	}
	return nil
}
