package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gafeatures/internal/config"
)

// Manager resolves pipeline file names against the configured directories
type Manager struct {
	paths *config.Paths
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths) *Manager {
	return &Manager{paths: paths}
}

// FileExists checks if a file exists at the given path
func (m *Manager) FileExists(path string) bool {
	fullPath := m.ResolvePath(path)
	_, err := os.Stat(fullPath)
	exists := err == nil

	slog.Debug("FileExists check",
		slog.String("path", path),
		slog.String("full_path", fullPath),
		slog.Bool("exists", exists))

	return exists
}

// RequireFile returns the resolved path or an error when no file is there
func (m *Manager) RequireFile(path string) (string, error) {
	fullPath := m.ResolvePath(path)
	info, err := os.Stat(fullPath)
	if err != nil {
		return "", fmt.Errorf("input file %s: %w", fullPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("input path %s is a directory", fullPath)
	}
	return fullPath, nil
}

// Create creates (or truncates) a file, making parent directories first
func (m *Manager) Create(path string) (*os.File, error) {
	fullPath := m.ResolvePath(path)

	slog.Debug("Creating file",
		slog.String("path", path),
		slog.String("full_path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return os.Create(fullPath)
}

// ListFiles returns all files in a directory (non-recursive)
func (m *Manager) ListFiles(dir string) ([]string, error) {
	fullPath := m.ResolvePath(dir)
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// ResolvePath maps data/, output/, tmp/ and logs/ prefixed names onto the
// configured directories. Other relative names live in the data directory.
func (m *Manager) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	slashed := filepath.ToSlash(path)
	switch {
	case strings.HasPrefix(slashed, "data/"):
		return filepath.Join(m.paths.DataDir, strings.TrimPrefix(slashed, "data/"))
	case strings.HasPrefix(slashed, "output/"):
		return filepath.Join(m.paths.OutputDir, strings.TrimPrefix(slashed, "output/"))
	case strings.HasPrefix(slashed, "tmp/"):
		return filepath.Join(m.paths.TempDir, strings.TrimPrefix(slashed, "tmp/"))
	case strings.HasPrefix(slashed, "logs/"):
		return filepath.Join(m.paths.LogsDir, strings.TrimPrefix(slashed, "logs/"))
	default:
		return filepath.Join(m.paths.DataDir, path)
	}
}
