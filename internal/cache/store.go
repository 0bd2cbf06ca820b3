// Package cache manages the flat download directory that doubles as the
// acquisition cache.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// PartialSuffix marks files that are still being written.
const PartialSuffix = ".part"

// Store resolves cache paths inside a single download directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the download directory.
func (s *Store) Dir() string {
	return s.dir
}

// EnsureDir creates the download directory if it does not exist.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	return nil
}

// Path returns the cache path for id with the given extension.
func (s *Store) Path(id domain.MediaID, ext string) string {
	return filepath.Join(s.dir, id.String()+"."+ext)
}

// Probe returns the first non-empty cached file for id, trying the kind's
// extensions in priority order. It only stats files.
func (s *Store) Probe(id domain.MediaID, kind domain.MediaKind) (string, bool) {
	if id == "" {
		return "", false
	}
	for _, ext := range kind.Extensions() {
		path := s.Path(id, ext)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.Size() > 0 {
			return path, true
		}
	}
	return "", false
}

// Remove deletes every cached and partial file for id. Missing files are ignored.
func (s *Store) Remove(id domain.MediaID, kind domain.MediaKind) error {
	for _, ext := range kind.Extensions() {
		path := s.Path(id, ext)
		for _, p := range []string{path, path + PartialSuffix} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove %s: %w", p, err)
			}
		}
	}
	return nil
}

// FreeBytes returns the free space of the download directory, or -1 when
// it is unknown.
func (s *Store) FreeBytes() int64 {
	return freeDiskSpace(s.dir)
}

// CheckSpace fails with ErrLowDiskSpace when fewer than minFree bytes are
// available. Unknown free space and a non-positive floor pass.
func (s *Store) CheckSpace(minFree int64) error {
	if minFree <= 0 {
		return nil
	}
	free := s.FreeBytes()
	if free < 0 {
		return nil
	}
	if free < minFree {
		return fmt.Errorf("%w: %d bytes free, need %d", domain.ErrLowDiskSpace, free, minFree)
	}
	return nil
}
