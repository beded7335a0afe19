package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"bilagscraper/pkg/logger"
	"bilagscraper/pkg/storage"
)

// Version is the manifest schema version written by Save
const Version = 1

// Item is the recorded outcome of one document
type Item struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Outcome    string `json:"outcome"`
	StatusCode int    `json:"status_code,omitempty"`
	Path       string `json:"path,omitempty"`
	Size       int    `json:"size,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Manifest records the last run
type Manifest struct {
	Version     int            `json:"version"`
	Email       string         `json:"email"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Listed      int            `json:"listed"`
	Skipped     int            `json:"skipped_rows"`
	DetailsFile string         `json:"details_file"`
	DownloadDir string         `json:"download_dir"`
	Counts      map[string]int `json:"counts"`
	Items       []Item         `json:"items"`
}

// Failed returns the items that were not downloaded
func (m *Manifest) Failed() []Item {
	var failed []Item
	for _, it := range m.Items {
		if it.Outcome != "downloaded" {
			failed = append(failed, it)
		}
	}
	return failed
}

// Manager reads and writes the manifest file
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager uses last_run.json in the per-user data directory
func NewManager() (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(filepath.Join(dataDir, "last_run.json")), nil
}

// NewManagerAt uses the manifest at path
func NewManagerAt(path string) *Manager {
	return &Manager{path: path, logger: logger.GetLogger()}
}

// Path returns the manifest location
func (m *Manager) Path() string {
	return m.path
}

// Save replaces the manifest atomically
func (m *Manager) Save(mf *Manifest) error {
	if mf.Version == 0 {
		mf.Version = Version
	}

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := storage.WriteFileAtomic(m.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	m.logger.DebugWithFields("Manifest saved", map[string]interface{}{
		"path":  m.path,
		"items": len(mf.Items),
	})
	return nil
}

// Load reads the manifest. It returns nil, nil when none was written yet.
func (m *Manager) Load() (*Manifest, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var mf Manifest
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if mf.Version > Version {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", mf.Version, Version)
	}
	return &mf, nil
}

// Delete removes the manifest file
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete manifest: %w", err)
	}
	return nil
}

// Exists checks if a manifest file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// getDataDirectory returns the per-user data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "bilagscraper")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "bilagscraper")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "bilagscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "bilagscraper")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
