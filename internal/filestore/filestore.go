package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clientflow.se/internal/ids"
	"clientflow.se/internal/obs"
)

// ErrNotFound means no stored file matches the requested name.
var ErrNotFound = errors.New("filestore: not found")

// Store keeps rendered documents on local disk under unique names and
// deletes them after a retention period, so the directory cannot grow
// without bound.
type Store struct {
	dir string
	ttl time.Duration
}

// New creates the directory if needed. A non-positive ttl disables cleanup.
func New(dir string, ttl time.Duration) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filestore: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, ttl: ttl}, nil
}

// Save writes data under a fresh unique name derived from base and returns
// the stored name.
func (s *Store) Save(base string, data []byte) (string, error) {
	name := ids.Filename(base)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// Path resolves a stored name to its on-disk path. Names containing path
// separators or traversal are rejected before touching the filesystem.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrNotFound
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

// SweepOnce removes files older than the retention period and reports how
// many were deleted.
func (s *Store) SweepOnce() (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-s.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Start runs the cleanup sweep periodically until the context is cancelled.
func (s *Store) Start(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	interval := s.ttl / 4
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.SweepOnce()
				if err != nil {
					obs.LogEvent("error", "filestore_sweep_failed", map[string]any{"error": err.Error()})
					continue
				}
				if removed > 0 {
					obs.LogEvent("info", "filestore_sweep", map[string]any{"removed": removed})
				}
			}
		}
	}()
}
