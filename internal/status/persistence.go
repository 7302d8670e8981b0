// Package status provides per-source status tracking and persistence for sync runs.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/stacklok/rewrite-sync/internal/atomicfile"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"
)

// StatusPersistence defines the interface for source status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// Save replaces the stored status of all sources
	Save(ctx context.Context, statuses map[string]*SourceStatus) error

	// Load loads the stored status of all sources
	// Returns an empty map if the file doesn't exist (first run)
	Load(ctx context.Context) (map[string]*SourceStatus, error)
}

// fileStatusPersistence implements StatusPersistence using a single JSON file
type fileStatusPersistence struct {
	path string
}

// NewFileStatusPersistence creates a new file-based status persistence
// storing statuses at path
func NewFileStatusPersistence(path string) StatusPersistence {
	return &fileStatusPersistence{
		path: path,
	}
}

// Save writes the statuses to the JSON file, creating its directory if needed
func (f *fileStatusPersistence) Save(_ context.Context, statuses map[string]*SourceStatus) error {
	if statuses == nil {
		statuses = map[string]*SourceStatus{}
	}

	// Marshal status to JSON with pretty printing for readability
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data: %w", err)
	}

	if err := atomicfile.WriteFile(f.path, data, 0600, atomicfile.WithCreateDir()); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}

	return nil
}

// Load reads the statuses from the JSON file
// Returns an empty map if the file doesn't exist
func (f *fileStatusPersistence) Load(_ context.Context) (map[string]*SourceStatus, error) {
	// #nosec G304 -- path comes from validated configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist - this is OK for first run
			return map[string]*SourceStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	statuses := map[string]*SourceStatus{}
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data: %w", err)
	}

	return statuses, nil
}
