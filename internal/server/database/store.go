package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/circa10a/countdown/internal/timer"
)

const (
	// BackendFile stores timers in a flat JSON file.
	BackendFile = "file"
	// BackendSQLite stores timers in a SQLite database.
	BackendSQLite = "sqlite"
)

// ErrConflict is returned by Save when the persisted state changed since the
// snapshot was loaded.
var ErrConflict = errors.New("timer store was modified concurrently")

// Snapshot is the full set of timers plus the revision it was read at.
// An empty Revision means nothing has been persisted yet.
type Snapshot struct {
	Timers   timer.Set
	Revision string
}

// Store defines the behaviors required for persisting timer snapshots.
// Snapshots are always read and written whole.
type Store interface {
	// Init prepares the backing storage.
	Init() error
	// Load reads the full snapshot. A store with no data yields an empty snapshot.
	Load(ctx context.Context) (Snapshot, error)
	// Save replaces the persisted snapshot if its revision still matches,
	// returning the snapshot with its new revision.
	Save(ctx context.Context, snap Snapshot) (Snapshot, error)
	// Ping verifies the storage is reachable.
	Ping() error
	// Close releases the storage.
	Close() error
}

// CorruptError reports persisted data that cannot be read back as timers.
type CorruptError struct {
	Source string
	Err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("timer store %s is corrupt: %v", e.Source, e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// WriteError reports a failure to persist a snapshot.
type WriteError struct {
	Source string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write timer store %s: %v", e.Source, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// New returns the store for the given backend rooted at dir.
func New(backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		store, err := NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendSQLite:
		store, err := NewSQLiteStore(dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	return nil, fmt.Errorf("unsupported storage backend %q", backend)
}

// validateSet checks every record against the timer invariants.
func validateSet(source string, s timer.Set) error {
	for _, name := range s.Names() {
		if name == "" {
			return &CorruptError{Source: source, Err: errors.New("timer with empty name")}
		}
		if err := s[name].Validate(); err != nil {
			return &CorruptError{Source: source, Err: fmt.Errorf("timer %q: %w", name, err)}
		}
	}

	return nil
}
