package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager writes receipt images into the download directory
type Manager struct {
	outputDir string
	saved     map[string]int64
	mu        sync.RWMutex
}

// NewManager creates the download directory if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		outputDir: outputDir,
		saved:     make(map[string]int64),
	}, nil
}

// ImagePath returns where the image for id is stored
func (m *Manager) ImagePath(id string) string {
	return filepath.Join(m.outputDir, id+".jpg")
}

// SaveImage stores r as <id>.jpg, replacing any earlier copy, and returns the path
func (m *Manager) SaveImage(r io.Reader, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid document id %q", id)
	}

	path := m.ImagePath(id)
	n, err := writeAtomic(path, r, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to save image %s: %w", id, err)
	}

	m.mu.Lock()
	m.saved[id] = n
	m.mu.Unlock()

	return path, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// SavedCount returns how many distinct ids were written by this manager
func (m *Manager) SavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}

// WriteFileAtomic replaces path with data so readers see the old or the new
// content, never a partial file
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	_, err := writeAtomic(path, bytes.NewReader(data), perm)
	return err
}

// writeAtomic copies r into a temp file next to path, then renames it over path
func writeAtomic(path string, r io.Reader, perm os.FileMode) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := tmp.Name()

	n, err := io.Copy(tmp, r)
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Chmod(tempFile, perm); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return n, nil
}
