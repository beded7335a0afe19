package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestManager(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "bilag")

	manager, err := NewManager(tempDir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if _, err := os.Stat(tempDir); err != nil {
		t.Fatalf("Expected download directory to exist: %v", err)
	}
	if manager.SavedCount() != 0 {
		t.Error("Expected initial saved count to be 0")
	}

	testData := []byte("\xff\xd8\xff receipt bytes")
	path, err := manager.SaveImage(bytes.NewReader(testData), "101")
	if err != nil {
		t.Fatalf("Failed to save image: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "101.jpg")
	if path != expectedPath {
		t.Errorf("Expected path %s, got %s", expectedPath, path)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if !bytes.Equal(content, testData) {
		t.Errorf("File content mismatch: got %q, want %q", content, testData)
	}

	if manager.SavedCount() != 1 {
		t.Errorf("Expected saved count to be 1, got %d", manager.SavedCount())
	}
	if manager.GetOutputDir() != tempDir {
		t.Errorf("Expected output dir %s, got %s", tempDir, manager.GetOutputDir())
	}
}

func TestSaveImageOverwrites(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if _, err := manager.SaveImage(bytes.NewReader([]byte("old")), "101"); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if _, err := manager.SaveImage(bytes.NewReader([]byte("new")), "101"); err != nil {
		t.Fatalf("second save: %v", err)
	}

	content, _ := os.ReadFile(manager.ImagePath("101"))
	if string(content) != "new" {
		t.Errorf("Expected overwrite, got %q", content)
	}
	if manager.SavedCount() != 1 {
		t.Errorf("Expected saved count to stay 1, got %d", manager.SavedCount())
	}

	entries, _ := os.ReadDir(manager.GetOutputDir())
	if len(entries) != 1 {
		t.Errorf("Expected only 101.jpg in directory, found %d entries", len(entries))
	}
}

func TestSaveImageRejectsPathIDs(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	for _, id := range []string{"", "..", "../escape", `a\b`} {
		if _, err := manager.SaveImage(bytes.NewReader(nil), id); err == nil {
			t.Errorf("Expected error for id %q", id)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestSaveImageFailureLeavesNoFile(t *testing.T) {
	manager, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	if _, err := manager.SaveImage(failingReader{}, "103"); err == nil {
		t.Fatal("Expected save to fail")
	}

	entries, _ := os.ReadDir(manager.GetOutputDir())
	if len(entries) != 0 {
		t.Errorf("Expected no files after failed save, found %d", len(entries))
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "item_details.txt")

	if err := WriteFileAtomic(path, []byte("101, a, b, c\n"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("102, d, e, f\n"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic rewrite: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(content) != "102, d, e, f\n" {
		t.Errorf("Expected full rewrite, got %q", content)
	}

	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0644 {
		t.Errorf("Expected mode 0644, got %v", info.Mode().Perm())
	}
}
