// Package state keeps the durable set of feed items the bot has already handled.
//
// The set lives in a JSON array file that is rewritten in full on every mark.
// Writes go to a temp file in the same directory which is fsynced and renamed
// over the original, so a crash leaves either the old or the new set on disk.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Set is a set of item ids.
type Set map[string]struct{}

// Contains reports whether id is in s.
func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// StoreCorruptError means the state file exists but cannot be parsed.
type StoreCorruptError struct {
	Path string
	Err  error
}

func (e *StoreCorruptError) Error() string {
	return fmt.Sprintf("state file %s is corrupt: %v", e.Path, e.Err)
}

func (e *StoreCorruptError) Unwrap() error { return e.Err }

// PersistError means a mark could not be written to disk. The mark is rolled back.
type PersistError struct {
	ID  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting mark for %s: %v", e.ID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Store is the file-backed processed set.
type Store struct {
	path string

	mu  sync.RWMutex
	set Set
}

// New returns a Store for the file at path. Call Load before using it.
func New(path string) *Store {
	return &Store{path: path, set: Set{}}
}

// Path returns the file the store persists to.
func (s *Store) Path() string { return s.path }

// Load reads the state file into memory. A missing file yields an empty set.
// The returned Set is a copy.
func (s *Store) Load() (Set, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.set = Set{}
		s.mu.Unlock()
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, &StoreCorruptError{Path: s.path, Err: err}
	}

	set := make(Set, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
	return s.Snapshot(), nil
}

// MarkAndPersist adds id to the set and writes the whole set to disk before
// returning. Marking an id that is already present does nothing.
func (s *Store) MarkAndPersist(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[id]; ok {
		return nil
	}
	s.set[id] = struct{}{}

	if err := s.writeLocked(); err != nil {
		delete(s.set, id)
		return &PersistError{ID: id, Err: err}
	}
	return nil
}

// Contains reports whether id has been marked.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Contains(id)
}

// Len returns the number of marked ids.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}

// IDs returns the marked ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Snapshot returns a copy of the in-memory set.
func (s *Store) Snapshot() Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Set, len(s.set))
	for id := range s.set {
		out[id] = struct{}{}
	}
	return out
}

func (s *Store) sortedLocked() []string {
	ids := make([]string, 0, len(s.set))
	for id := range s.set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Store) writeLocked() error {
	data, err := json.Marshal(s.sortedLocked())
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}

	// Best effort: make the rename itself durable.
	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
