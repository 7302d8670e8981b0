// Package app provides application lifecycle management for rewrite-sync.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/stacklok/rewrite-sync/internal/config"
	"github.com/stacklok/rewrite-sync/internal/pipeline"
)

// ErrRunInProgress is returned when another run holds the lock file
var ErrRunInProgress = errors.New("another run is in progress")

// SyncApp encapsulates all components needed to run a sync
// It serializes runs across processes with an advisory lock file
type SyncApp struct {
	config     *config.Config
	components *AppComponents
	lockPath   string
}

// Run performs one sync while holding the lock file. It fails with
// ErrRunInProgress when another process holds the lock.
func (app *SyncApp) Run(ctx context.Context) (*pipeline.RunReport, error) {
	unlock, err := acquireLock(app.lockPath)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return app.components.Runner.Run(ctx)
}

// Close flushes and shuts down telemetry
func (app *SyncApp) Close(ctx context.Context) error {
	if app.components.Telemetry == nil {
		return nil
	}
	if err := app.components.Telemetry.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown telemetry: %w", err)
	}
	return nil
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// acquireLock takes the advisory run lock without blocking
func acquireLock(path string) (func(), error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create lock directory: %w", err)
		}
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: lock %s is held", ErrRunInProgress, path)
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release lock", "path", path, "error", err)
		}
	}, nil
}
