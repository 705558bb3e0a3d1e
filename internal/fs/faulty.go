package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	FailAfterBytes int64 // Fail writes after this many bytes written TO THIS FILE. -1 to disable.
	FailOnSync     bool
	FailOnClose    bool
	// TornWrite lets the write that crosses FailAfterBytes persist the bytes
	// up to the limit before failing, like a crash in the middle of a write.
	TornWrite bool
	Err       error
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS      FileSystem
	mu      sync.Mutex
	rules   map[string]Fault // Filename pattern -> Fault
	Default Fault            // Fallback
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:    fs,
		rules: make(map[string]Fault),
		Default: Fault{
			FailAfterBytes: -1, // No limit
		},
	}
}

// AddRule adds a fault injection rule for files whose name contains pattern.
// Rules apply to files opened after the call.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearRules removes all rules.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	fault := f.Default
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	f.mu.Unlock()

	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error                    { return f.FS.Remove(name) }
func (f *FaultyFS) RemoveAll(path string) error                 { return f.FS.RemoveAll(path) }
func (f *FaultyFS) Rename(oldpath, newpath string) error        { return f.FS.Rename(oldpath, newpath) }
func (f *FaultyFS) Stat(name string) (os.FileInfo, error)       { return f.FS.Stat(name) }
func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error { return f.FS.MkdirAll(path, perm) }
func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error)  { return f.FS.ReadDir(name) }
func (f *FaultyFS) Truncate(name string, size int64) error      { return f.FS.Truncate(name, size) }
func (f *FaultyFS) SyncDir(path string) error                   { return f.FS.SyncDir(path) }

type faultyFile struct {
	File
	fault   Fault
	mu      sync.Mutex
	written int64
}

// budget returns how many of n bytes may still be written, and whether the write must fail.
func (ff *faultyFile) budget(n int) (int, bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.fault.FailAfterBytes < 0 || ff.written+int64(n) <= ff.fault.FailAfterBytes {
		ff.written += int64(n)
		return n, false
	}
	allowed := 0
	if ff.fault.TornWrite {
		allowed = int(ff.fault.FailAfterBytes - ff.written)
		if allowed < 0 {
			allowed = 0
		}
	}
	ff.written += int64(allowed)
	return allowed, true
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	allowed, fail := ff.budget(len(p))
	if !fail {
		return ff.File.Write(p)
	}
	if allowed > 0 {
		n, _ := ff.File.Write(p[:allowed])
		return n, ff.fault.Err
	}
	return 0, ff.fault.Err
}

func (ff *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	allowed, fail := ff.budget(len(p))
	if !fail {
		return ff.File.WriteAt(p, off)
	}
	if allowed > 0 {
		n, _ := ff.File.WriteAt(p[:allowed], off)
		return n, ff.fault.Err
	}
	return 0, ff.fault.Err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.Err
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		ff.File.Close()
		return ff.fault.Err
	}
	return ff.File.Close()
}
