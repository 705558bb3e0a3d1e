// Package mmap provides read-only memory-mapped file access.
//
// Read-only index snapshots map both the slot table and the record log so
// that concurrent point lookups are plain memory reads without a file
// descriptor or lock per call.
//
//	m, err := mmap.Open("index.tbl")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessRandom)
//	slot, _ := m.Slice(off, 24)
//
// Unix platforms use mmap(2) and madvise(2). Other platforms fall back to
// reading the file into memory.
//
// A Mapping is safe for concurrent readers. Close is idempotent; callers must
// ensure no goroutine touches Bytes or Slice results after Close returns.
package mmap
