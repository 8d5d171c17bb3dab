package database

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/circa10a/countdown/internal/timer"
)

// FileName is the snapshot file inside the storage directory.
const FileName = "timers_config.json"

// FileStore keeps the snapshot in a single JSON object keyed by timer name.
// The revision of a snapshot is the SHA-256 of the file content it was read from.
type FileStore struct {
	mu   sync.Mutex
	dir  string
	path string
	lock *dirLock
}

// record mirrors timer.Timer with pointers so missing fields can be detected.
type record struct {
	TotalSeconds *int  `json:"total_seconds"`
	SecondsLeft  *int  `json:"seconds_left"`
	Loop         *bool `json:"loop"`
	Active       *bool `json:"active"`
}

// NewFileStore creates the storage directory and takes its single-writer lock.
func NewFileStore(dir string) (*FileStore, error) {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	lock, err := acquireDirLock(dir)
	if err != nil {
		return nil, err
	}

	return &FileStore{
		dir:  dir,
		path: filepath.Join(dir, FileName),
		lock: lock,
	}, nil
}

// Path returns the location of the snapshot file.
func (f *FileStore) Path() string {
	return f.path
}

// Init is a no-op: an absent file is an empty store.
func (f *FileStore) Init() error {
	return nil
}

// Load reads and parses the snapshot file.
func (f *FileStore) Load(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	data, err := f.read()
	if err != nil {
		return Snapshot{}, err
	}
	if data == nil {
		return Snapshot{Timers: timer.Set{}}, nil
	}

	timers, err := decodeTimers(data)
	if err != nil {
		return Snapshot{}, &CorruptError{Source: f.path, Err: err}
	}

	err = validateSet(f.path, timers)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Timers: timers, Revision: revisionOf(data)}, nil
}

// Save atomically replaces the snapshot file. The new content is written to a
// temporary file in the same directory, synced and renamed over the old one.
func (f *FileStore) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	current, err := f.read()
	if err != nil {
		return Snapshot{}, &WriteError{Source: f.path, Err: err}
	}

	currentRevision := ""
	if current != nil {
		currentRevision = revisionOf(current)
	}
	if currentRevision != snap.Revision {
		return Snapshot{}, ErrConflict
	}

	timers := snap.Timers
	if timers == nil {
		timers = timer.Set{}
	}

	data, err := json.MarshalIndent(timers, "", "  ")
	if err != nil {
		return Snapshot{}, &WriteError{Source: f.path, Err: err}
	}

	err = f.writeAtomic(data)
	if err != nil {
		return Snapshot{}, &WriteError{Source: f.path, Err: err}
	}

	return Snapshot{Timers: timers.Clone(), Revision: revisionOf(data)}, nil
}

// Ping verifies the storage directory is still reachable.
func (f *FileStore) Ping() error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", f.dir)
	}
	return nil
}

// Close releases the directory lock.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lock.release()
}

// read returns nil, nil when the file does not exist.
func (f *FileStore) read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *FileStore) writeAtomic(data []byte) error {
	tmp, err := os.CreateTemp(f.dir, "."+FileName+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	// Remove the temp file on any failure before the rename.
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	_, err = tmp.Write(data)
	if err != nil {
		_ = tmp.Close()
		return err
	}

	err = tmp.Sync()
	if err != nil {
		_ = tmp.Close()
		return err
	}

	err = tmp.Close()
	if err != nil {
		return err
	}

	err = os.Chmod(tmpPath, 0600)
	if err != nil {
		return err
	}

	err = os.Rename(tmpPath, f.path)
	if err != nil {
		return err
	}
	committed = true

	return nil
}

// decodeTimers parses the snapshot object token by token so duplicate names
// are detected instead of silently overwritten.
func decodeTimers(data []byte) (timer.Set, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object of timers, got %v", tok)
	}

	timers := timer.Set{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected timer name, got %v", tok)
		}
		if _, exists := timers[name]; exists {
			return nil, fmt.Errorf("duplicate timer name %q", name)
		}

		var rec record
		err = dec.Decode(&rec)
		if err != nil {
			return nil, fmt.Errorf("timer %q: %w", name, err)
		}

		t, err := rec.toTimer()
		if err != nil {
			return nil, fmt.Errorf("timer %q: %w", name, err)
		}
		timers[name] = t
	}

	// Closing brace.
	_, err = dec.Token()
	if err != nil {
		return nil, err
	}

	_, err = dec.Token()
	if err != io.EOF {
		return nil, errors.New("unexpected data after timer object")
	}

	return timers, nil
}

func (r record) toTimer() (timer.Timer, error) {
	switch {
	case r.TotalSeconds == nil:
		return timer.Timer{}, errors.New("missing field total_seconds")
	case r.SecondsLeft == nil:
		return timer.Timer{}, errors.New("missing field seconds_left")
	case r.Loop == nil:
		return timer.Timer{}, errors.New("missing field loop")
	case r.Active == nil:
		return timer.Timer{}, errors.New("missing field active")
	}

	return timer.Timer{
		TotalSeconds: *r.TotalSeconds,
		SecondsLeft:  *r.SecondsLeft,
		Loop:         *r.Loop,
		Active:       *r.Active,
	}, nil
}

func revisionOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
