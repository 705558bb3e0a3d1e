package tripdb

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hupe1980/tripdb/internal/compress"
	"github.com/hupe1980/tripdb/internal/diskindex"
	"github.com/hupe1980/tripdb/internal/lock"
	"github.com/hupe1980/tripdb/internal/recordstore"
)

var (
	// ErrNotFound is returned when a key or a file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when persisted data fails validation.
	ErrCorrupt = errors.New("data corruption detected")

	// ErrIO is returned for failures reading or writing the source, the index or the output.
	ErrIO = errors.New("i/o failure")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("db closed")

	// ErrLocked is returned by Open when another process holds the index directory.
	ErrLocked = lock.ErrLocked
)

// ErrorKind classifies an Error.
type ErrorKind int

const (
	// KindIO is the default kind.
	KindIO ErrorKind = iota
	KindNotFound
	KindCorrupt
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindCorrupt:
		return "corrupt"
	default:
		return "io"
	}
}

// Error describes a failed operation.
//
// errors.Is(err, ErrNotFound), ErrCorrupt and ErrIO match on Kind; the
// underlying error is available through errors.Unwrap.
type Error struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", msg, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", msg, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrCorrupt:
		return e.Kind == KindCorrupt
	case ErrIO:
		return e.Kind == KindIO
	}
	return false
}

func translateError(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	// Cancellation and lifecycle errors pass through unclassified.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, ErrLocked) {
		return err
	}
	if errors.Is(err, diskindex.ErrClosed) || errors.Is(err, recordstore.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	kind := KindIO
	switch {
	case errors.Is(err, os.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, diskindex.ErrCorrupt),
		errors.Is(err, recordstore.ErrCorrupt),
		errors.Is(err, recordstore.ErrIncompatibleVersion),
		errors.Is(err, compress.ErrCorrupt):
		kind = KindCorrupt
	}
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
