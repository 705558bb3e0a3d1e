package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	tmp := t.TempDir()
	lfs := LocalFS{}

	dir := filepath.Join(tmp, "subdir")
	assert.NoError(t, lfs.MkdirAll(dir, 0755))

	fpath := filepath.Join(dir, "test.txt")
	f, err := lfs.OpenFile(fpath, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	_, err = f.Write([]byte("hello"))
	assert.NoError(t, err)

	// Positional overwrite
	_, err = f.WriteAt([]byte("J"), 0)
	assert.NoError(t, err)

	buf := make([]byte, 5)
	_, err = f.ReadAt(buf, 0)
	assert.NoError(t, err)
	assert.Equal(t, "Jello", string(buf))

	assert.NoError(t, f.Sync())
	assert.NoError(t, f.Truncate(4))

	info, err := f.Stat()
	assert.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())
	assert.NoError(t, f.Close())

	entries, err := lfs.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)

	newPath := filepath.Join(dir, "renamed.txt")
	assert.NoError(t, lfs.Rename(fpath, newPath))
	assert.NoError(t, lfs.SyncDir(dir))

	assert.NoError(t, lfs.Truncate(newPath, 3))
	info2, err := lfs.Stat(newPath)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), info2.Size())

	assert.NoError(t, lfs.Remove(newPath))
	assert.NoError(t, lfs.RemoveAll(dir))
	_, err = lfs.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CURRENT")

	require.NoError(t, WriteFileAtomic(nil, path, []byte("gen-a"), 0644))
	require.NoError(t, WriteFileAtomic(nil, path, []byte("gen-b"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "gen-b", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS_FailAfterBytes(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("data", Fault{FailAfterBytes: 4})

	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := ffs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("abcd"))
	require.NoError(t, err)

	_, err = f.Write([]byte("e"))
	assert.ErrorIs(t, err, ErrInjected)

	_, err = f.WriteAt([]byte("z"), 0)
	assert.ErrorIs(t, err, ErrInjected)
}

func TestFaultyFS_TornWrite(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("torn", Fault{FailAfterBytes: 6, TornWrite: true})

	path := filepath.Join(t.TempDir(), "torn.bin")
	f, err := ffs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	n, err := f.Write([]byte("0123456789"))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, 6, n)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "012345", string(data))
}

func TestFaultyFS_SyncAndClose(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("sync", Fault{FailAfterBytes: -1, FailOnSync: true, FailOnClose: true})

	f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "sync.bin"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)

	assert.ErrorIs(t, f.Sync(), ErrInjected)
	assert.ErrorIs(t, f.Close(), ErrInjected)
}

func TestFaultyFS_NoRule(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("other", Fault{FailAfterBytes: 0})
	ffs.ClearRules()

	f, err := ffs.OpenFile(filepath.Join(t.TempDir(), "clean.bin"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("fine"))
	assert.NoError(t, err)
	assert.NoError(t, f.Sync())
}
