package tripdb

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hupe1980/tripdb/internal/diskindex"
	"github.com/hupe1980/tripdb/internal/fs"
)

const (
	currentFile = "CURRENT"
	genPrefix   = "gen-"
)

// snapshot is one immutable, memory-mapped index generation.
//
// The DB holds one reference while the snapshot is current; every query
// holds another for its duration. The last release closes the index and,
// once the snapshot has been retired, removes its directory.
type snapshot struct {
	gen   string
	dir   string
	index *diskindex.Index
	fsys  fs.FileSystem

	refs    atomic.Int64
	retired atomic.Bool
	logger  *Logger
}

func openSnapshot(fsys fs.FileSystem, root, gen string, opts diskindex.Options, logger *Logger) (*snapshot, error) {
	dir := filepath.Join(root, gen)
	ix, err := diskindex.OpenReadOnly(dir, opts)
	if err != nil {
		return nil, err
	}
	s := &snapshot{gen: gen, dir: dir, index: ix, fsys: fsys, logger: logger}
	s.refs.Store(1)
	return s, nil
}

// tryAcquire takes a reference unless the snapshot is already released.
func (s *snapshot) tryAcquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (s *snapshot) release() {
	if s.refs.Add(-1) != 0 {
		return
	}
	if err := s.index.Close(); err != nil {
		s.logger.Warn("closing index snapshot", "gen", s.gen, "error", err)
	}
	if s.retired.Load() {
		if err := s.fsys.RemoveAll(s.dir); err != nil {
			s.logger.Warn("removing retired generation", "gen", s.gen, "error", err)
		}
	}
}

// retire drops the owner's reference; the generation is deleted after the
// last reader finishes.
func (s *snapshot) retire() {
	s.retired.Store(true)
	s.release()
}

func newGeneration() string {
	return genPrefix + uuid.NewString()
}

func validGeneration(gen string) bool {
	id, ok := strings.CutPrefix(gen, genPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// readCurrent returns the generation named by CURRENT, or "" when the file
// is missing, empty or malformed.
func readCurrent(fsys fs.FileSystem, root string) (string, error) {
	f, err := fsys.OpenFile(filepath.Join(root, currentFile), os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, 256))
	if err != nil {
		return "", err
	}
	gen := strings.TrimSpace(string(data))
	if !validGeneration(gen) {
		return "", nil
	}
	return gen, nil
}

func writeCurrent(fsys fs.FileSystem, root, gen string) error {
	if err := fs.WriteFileAtomic(fsys, filepath.Join(root, currentFile), []byte(gen+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", currentFile, err)
	}
	return fsys.SyncDir(root)
}

// removeStaleGenerations deletes every generation directory except keep.
// Leftovers come from crashed builds or retired snapshots of a previous process.
func removeStaleGenerations(ctx context.Context, fsys fs.FileSystem, root string, keep map[string]bool, logger *Logger) {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, genPrefix) || keep[name] {
			continue
		}
		if err := fsys.RemoveAll(filepath.Join(root, name)); err != nil {
			logger.WarnContext(ctx, "removing stale generation", "gen", name, "error", err)
			continue
		}
		logger.DebugContext(ctx, "removed stale generation", "gen", name)
	}
}
