package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const lockFileName = "countdown.lock"

// dirLock is an exclusive flock on a storage directory. The kernel drops it
// when the process exits, so a crash never leaves a stale lock behind.
type dirLock struct {
	file *os.File
	path string
}

// LockError is returned when another process already owns the storage directory.
type LockError struct {
	Path   string
	Holder string
	Err    error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("storage directory is locked by another countdown process (lock file: %s)", e.Path)
	if e.Holder != "" {
		msg += ", held by " + e.Holder
	}
	return msg
}

func (e *LockError) Unwrap() error {
	return e.Err
}

func acquireDirLock(dir string) (*dirLock, error) {
	path := filepath.Join(dir, lockFileName)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	err = syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		holder, _ := os.ReadFile(path)
		_ = file.Close()
		return nil, &LockError{Path: path, Holder: strings.TrimSpace(string(holder)), Err: err}
	}

	// Best effort, the flock is what matters.
	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(fmt.Sprintf("pid=%d\n", os.Getpid())), 0)
	}

	return &dirLock{file: file, path: path}, nil
}

// release is safe to call more than once.
func (l *dirLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}

	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	l.file = nil

	return err
}
