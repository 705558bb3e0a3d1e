package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapped.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestMapping_ReadAt(t *testing.T) {
	content := []byte("Hello, Mmap!")
	m, err := Open(writeTemp(t, content))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int64(len(content)), m.Size())
	assert.Equal(t, content, m.Bytes())
	require.NoError(t, m.Advise(AccessRandom))

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	n, err = m.ReadAt(make([]byte, 10), 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	buf3 := make([]byte, 10)
	n, err = m.ReadAt(buf3, 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestMapping_Slice(t *testing.T) {
	m, err := Open(writeTemp(t, []byte("0123456789")))
	require.NoError(t, err)
	defer m.Close()

	b, err := m.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, "234", string(b))

	_, err = m.Slice(8, 5)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestMapping_EmptyFile(t *testing.T) {
	m, err := Open(writeTemp(t, nil))
	require.NoError(t, err)

	assert.Equal(t, int64(0), m.Size())
	assert.Nil(t, m.Bytes())
	assert.NoError(t, m.Close())
}

func TestMapping_CloseIdempotent(t *testing.T) {
	m, err := Open(writeTemp(t, []byte("abc")))
	require.NoError(t, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Slice(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, os.IsNotExist(err))
}
