// Package cache persists inferred target sets keyed by a fingerprint of the
// project's inputs, so repeated indexing passes skip config introspection.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"taskinfer/pkg/logger"
	"taskinfer/pkg/targets"
)

// ComputeFunc infers the target set for a fingerprint that is not cached
type ComputeFunc func(ctx context.Context) (targets.TargetSet, error)

// Store is the fingerprint -> target set table for one framework family.
// Entries read at startup are served as hits; only entries used during the
// current pass are written back by Flush.
type Store struct {
	path string
	name string
	log  logger.Logger

	mu         sync.RWMutex
	persisted  map[Fingerprint]targets.TargetSet
	calculated map[Fingerprint]targets.TargetSet

	group singleflight.Group
}

// NewStore creates an empty store persisted at path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		path:       path,
		name:       filepath.Base(path),
		log:        log.With("cache", filepath.Base(path)),
		persisted:  make(map[Fingerprint]targets.TargetSet),
		calculated: make(map[Fingerprint]targets.TargetSet),
	}
}

// Path is the location of the persisted cache file
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted table. A missing file is an empty cache; so is an
// unreadable or corrupt one, which is reported and then overwritten by the
// next Flush. Individual entries that fail validation are dropped.
func (s *Store) Load(fs afero.Fs) error {
	unlock, err := s.lock(fs)
	if err != nil {
		return err
	}
	defer unlock()

	exists, err := afero.Exists(fs, s.path)
	if err != nil {
		return fmt.Errorf("failed to stat cache file %s: %w", s.path, err)
	}
	if !exists {
		s.log.Debug("no cache file, starting empty", "path", s.path)
		return nil
	}

	data, err := afero.ReadFile(fs, s.path)
	if err != nil {
		s.log.Warn("cache file unreadable, starting empty", "path", s.path, "error", err)
		return nil
	}

	var table map[Fingerprint]targets.TargetSet
	if err := json.Unmarshal(data, &table); err != nil {
		s.log.Warn("cache file corrupt, starting empty", "path", s.path, "error", err)
		return nil
	}

	loaded := make(map[Fingerprint]targets.TargetSet, len(table))
	for fp, set := range table {
		if err := validateSet(set); err != nil {
			s.log.Warn("dropping invalid cache entry", "fingerprint", fp, "error", err)
			continue
		}
		loaded[fp] = set
	}

	s.mu.Lock()
	s.persisted = loaded
	s.mu.Unlock()

	s.log.Debug("cache loaded", "entries", len(loaded))
	return nil
}

// Get returns the target set for fp from this pass or the persisted table
func (s *Store) Get(fp Fingerprint) (targets.TargetSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.calculated[fp]; ok {
		return set, true
	}
	set, ok := s.persisted[fp]
	return set, ok
}

// Put records set as the result for fp in this pass
func (s *Store) Put(fp Fingerprint, set targets.TargetSet) {
	s.mu.Lock()
	s.calculated[fp] = set
	s.mu.Unlock()
}

// GetOrCompute returns the cached set for fp, or runs compute and records its
// result. Concurrent callers with the same fingerprint share one compute call.
// hit is true when compute did not run for this caller.
func (s *Store) GetOrCompute(ctx context.Context, fp Fingerprint, compute ComputeFunc) (set targets.TargetSet, hit bool, err error) {
	m := recorder()

	if set, ok := s.Get(fp); ok {
		s.Put(fp, set)
		m.recordHit(ctx, s.name)
		return set, true, nil
	}

	computed := false
	v, err, _ := s.group.Do(string(fp), func() (any, error) {
		if set, ok := s.Get(fp); ok {
			return set, nil
		}
		computed = true
		start := time.Now()
		set, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		m.recordMiss(ctx, s.name, time.Since(start))
		s.Put(fp, set)
		return set, nil
	})
	if err != nil {
		return nil, false, err
	}
	if !computed {
		m.recordHit(ctx, s.name)
	}
	return v.(targets.TargetSet), !computed, nil
}

// Len is the number of entries Flush would write
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.calculated)
}

// Flush overwrites the persisted file with the entries of this pass. It is
// meant to be called once, after every lookup of the pass has finished.
func (s *Store) Flush(fs afero.Fs) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.calculated, "", "  ")
	count := len(s.calculated)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	unlock, err := s.lock(fs)
	if err != nil {
		return err
	}
	defer unlock()

	tempPath := s.path + ".tmp"
	if err := afero.WriteFile(fs, tempPath, data, 0o644); err != nil {
		_ = fs.Remove(tempPath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := fs.Rename(tempPath, s.path); err != nil {
		_ = fs.Remove(tempPath)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	s.log.Debug("cache flushed", "entries", count, "path", s.path)
	return nil
}

// Clear removes the persisted file and forgets every entry
func (s *Store) Clear(fs afero.Fs) error {
	s.mu.Lock()
	s.persisted = make(map[Fingerprint]targets.TargetSet)
	s.calculated = make(map[Fingerprint]targets.TargetSet)
	s.mu.Unlock()

	if err := fs.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// lock takes an exclusive file lock next to the cache file so concurrent
// processes do not interleave reads and writes. Only real filesystems are locked.
func (s *Store) lock(fs afero.Fs) (func(), error) {
	if _, ok := fs.(*afero.OsFs); !ok {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	fileLock := flock.New(s.path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock cache file: %w", err)
	}
	return func() { _ = fileLock.Unlock() }, nil
}

func validateSet(set targets.TargetSet) error {
	if len(set) == 0 {
		return fmt.Errorf("empty target set")
	}
	for name, target := range set {
		if target == nil {
			return fmt.Errorf("target %q is null", name)
		}
		if err := target.Validate(); err != nil {
			return fmt.Errorf("target %q: %w", name, err)
		}
	}
	return nil
}
