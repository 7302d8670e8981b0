// Package atomicfile replaces files in place so readers never observe a
// partially written file.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Option configures WriteFile
type Option func(*options)

type options struct {
	rename func(oldpath, newpath string) error
	mkdir  bool
}

// WithRename replaces os.Rename. Used to inject failures in tests.
func WithRename(fn func(oldpath, newpath string) error) Option {
	return func(o *options) {
		o.rename = fn
	}
}

// WithCreateDir creates the parent directory when missing
func WithCreateDir() Option {
	return func(o *options) {
		o.mkdir = true
	}
}

// WriteFile writes data to a temporary file in the target directory, syncs
// it and renames it over path. On failure the temporary file is removed and
// any previous file at path is left untouched.
func WriteFile(path string, data []byte, perm os.FileMode, opts ...Option) error {
	o := &options{rename: os.Rename}
	for _, opt := range opts {
		opt(o)
	}

	dir := filepath.Dir(path)
	if o.mkdir {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := o.rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}

	return nil
}
