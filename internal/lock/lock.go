// Package lock provides an exclusive advisory lock on an index directory so
// that only one process builds or mutates it at a time.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the lock file created inside the locked directory.
const FileName = "LOCK"

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock: directory already in use")

// Lock is a held directory lock.
type Lock struct {
	f *os.File
}

// Acquire takes a non-blocking exclusive lock on dir, creating dir and the
// lock file if needed. The lock is held until Release.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("lock: create dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock: open: %w", err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	uerr := unlockFile(f)
	cerr := f.Close()
	return errors.Join(uerr, cerr)
}
