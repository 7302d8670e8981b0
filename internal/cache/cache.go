// Package cache persists the last successful download of each cacheable
// source so a later failed fetch can still contribute its section.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stacklok/rewrite-sync/internal/atomicfile"
)

// FileExtension is appended to the source name to form the entry file name
const FileExtension = ".conf"

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=cache.go Store

// Store defines the interface for per-source rule snapshots
type Store interface {
	// Store atomically replaces the entry of source with data
	Store(ctx context.Context, source string, data []byte) error

	// Load returns the entry of source. The boolean is false when no entry
	// exists, which is not an error.
	Load(ctx context.Context, source string) ([]byte, bool, error)

	// Path returns the file path of the entry of source
	Path(source string) string

	// List returns the entries present, sorted by name
	List(ctx context.Context) ([]Entry, error)
}

// Entry describes a cache file
type Entry struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// CacheWriteError is returned when an entry could not be persisted.
// The previous entry, if any, is left untouched.
//
//nolint:revive // the package-qualified name is part of the error taxonomy
type CacheWriteError struct {
	Source string
	Err    error
}

// Error implements the error interface
func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("failed to write cache entry for %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error
func (e *CacheWriteError) Unwrap() error {
	return e.Err
}

// fileStore implements Store on a local directory
type fileStore struct {
	dir    string
	rename func(oldpath, newpath string) error
}

// NewFileStore creates a store rooted at dir. The directory is created on
// the first Store.
func NewFileStore(dir string) Store {
	return &fileStore{dir: dir, rename: os.Rename}
}

// Path returns <dir>/<source>.conf
func (f *fileStore) Path(source string) string {
	return filepath.Join(f.dir, source+FileExtension)
}

// Store writes data through a temporary file and renames it into place
func (f *fileStore) Store(_ context.Context, source string, data []byte) error {
	if err := atomicfile.WriteFile(f.Path(source), data, 0644,
		atomicfile.WithCreateDir(),
		atomicfile.WithRename(f.rename),
	); err != nil {
		return &CacheWriteError{Source: source, Err: err}
	}
	return nil
}

// Load reads the entry of source without touching the network
func (f *fileStore) Load(_ context.Context, source string) ([]byte, bool, error) {
	//nolint:gosec // path is built from a validated source name
	data, err := os.ReadFile(f.Path(source))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry for %s: %w", source, err)
	}
	return data, true, nil
}

// List returns the .conf entries in the cache directory
func (f *fileStore) List(_ context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FileExtension) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat cache entry %s: %w", name, err)
		}
		entries = append(entries, Entry{
			Name:    strings.TrimSuffix(name, FileExtension),
			Path:    filepath.Join(f.dir, name),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
