package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maltedev/parts-catalog-scraper/internal/models"
)

// ManifestStore persists the snapshot of the latest run as JSON next to the report.
type ManifestStore struct {
	mu       sync.RWMutex
	filename string
}

func NewManifestStore(filename string) *ManifestStore {
	return &ManifestStore{filename: filename}
}

func (ms *ManifestStore) Path() string {
	return ms.filename
}

func (ms *ManifestStore) Save(snapshot *models.Snapshot) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if snapshot == nil {
		return fmt.Errorf("snapshot is required")
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if dir := filepath.Dir(ms.filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	// Write to temp file first for atomicity
	tmpFile := ms.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := os.Rename(tmpFile, ms.filename); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to move manifest into place: %w", err)
	}
	return nil
}

func (ms *ManifestStore) Load() (*models.Snapshot, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, err := os.ReadFile(ms.filename)
	if err != nil {
		return nil, err
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &snapshot, nil
}
