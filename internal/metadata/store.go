// Package metadata persists the photo catalog as a single JSON file next to
// the cached payloads.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/timmy/photocache/internal/domain"
	"github.com/timmy/photocache/internal/logger"
)

// FileName is the catalog file name inside the cache directory.
const FileName = "metadata.json"

// Store loads and saves the catalog. All file access goes through fs, so
// tests can run against an in-memory filesystem.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a Store rooted at dir.
// Parameters:
//   - fs: filesystem to use; nil means the OS filesystem.
//   - dir: cache directory holding metadata.json and the payload files.
//
// Returns:
//   - *Store: initialized store.
func NewStore(fs afero.Fs, dir string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, dir: dir}
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path of the catalog file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Load reads the catalog. A missing or unreadable file yields an empty
// catalog; the failure is only logged.
func (s *Store) Load(ctx context.Context) domain.Catalog {
	data, err := afero.ReadFile(s.fs, s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			logger.CtxDebug(ctx, "No catalog at %s, starting empty", s.Path())
		} else {
			logger.FromContext(ctx).WithError(err).WithField("path", s.Path()).Warn("Failed to read catalog, starting empty")
		}
		return domain.Catalog{}
	}

	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("path", s.Path()).Warn("Catalog is corrupt, starting empty")
		return domain.Catalog{}
	}
	if catalog == nil {
		catalog = domain.Catalog{}
	}
	return catalog
}

// Save replaces the catalog file with the full contents of catalog.
// The data is written to a temporary file and renamed into place.
func (s *Store) Save(ctx context.Context, catalog domain.Catalog) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if catalog == nil {
		catalog = domain.Catalog{}
	}
	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp catalog: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.Path()); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace catalog: %w", err)
	}

	logger.With(logger.Fields{logger.FieldCount: len(catalog), logger.FieldSize: len(data)}).
		Debug(ctx, "Catalog saved to %s", s.Path())
	return nil
}

// Exists reports whether the payload file backing a record is present.
func (s *Store) Exists(filename string) bool {
	if filename == "" {
		return false
	}
	info, err := s.fs.Stat(filepath.Join(s.dir, filename))
	return err == nil && !info.IsDir()
}

// WritePayload stores a downloaded payload under the cache directory.
func (s *Store) WritePayload(filename string, data []byte) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, filename), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// OpenPayload opens a cached payload for reading.
func (s *Store) OpenPayload(filename string) (afero.File, error) {
	return s.fs.Open(filepath.Join(s.dir, filename))
}
