package recordstore

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/hupe1980/tripdb/codec"
	"github.com/hupe1980/tripdb/internal/compress"
	"github.com/hupe1980/tripdb/internal/fs"
	"github.com/hupe1980/tripdb/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(i int) *model.Record {
	return &model.Record{
		VendorID:     "1",
		TripDistance: "1.5",
		DOLocationID: strconv.Itoa(100 + i%7),
		TotalAmount:  strconv.Itoa(i) + ".25",
		Index:        strconv.Itoa(i),
	}
}

func TestStore_AppendRead(t *testing.T) {
	for _, comp := range []compress.Type{compress.None, compress.LZ4, compress.ZSTD} {
		for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}, codec.Row{}} {
			t.Run(comp.String()+"/"+c.Name(), func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "records.log")
				s, err := Create(nil, path, Options{Codec: c, Compression: comp})
				require.NoError(t, err)

				offsets := make([]int64, 50)
				for i := range offsets {
					offsets[i], err = s.Append(testRecord(i))
					require.NoError(t, err)
				}
				assert.Equal(t, s.DataOffset(), offsets[0])

				// Unflushed frames are readable.
				rec, err := s.Read(offsets[49])
				require.NoError(t, err)
				assert.Equal(t, *testRecord(49), rec)

				require.NoError(t, s.Close())
				require.NoError(t, s.Close())

				ro, err := OpenReadOnly(path, Options{})
				require.NoError(t, err)
				defer ro.Close()
				assert.Equal(t, c.Name(), ro.Codec().Name())
				assert.Equal(t, comp, ro.Compression())

				for i, off := range offsets {
					rec, err := ro.Read(off)
					require.NoError(t, err)
					assert.Equal(t, *testRecord(i), rec)
				}
			})
		}
	}
}

func TestStore_OpenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.log")
	s, err := Create(nil, path, DefaultOptions())
	require.NoError(t, err)
	off0, err := s.Append(testRecord(0))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(nil, path, Options{})
	require.NoError(t, err)
	off1, err := s.Append(testRecord(1))
	require.NoError(t, err)
	assert.Greater(t, off1, off0)
	require.NoError(t, s.Sync())

	var keys []string
	require.NoError(t, s.scan(func(_ int64, rec model.Record) error {
		keys = append(keys, rec.Key())
		return nil
	}))
	assert.Equal(t, []string{"0", "1"}, keys)
	require.NoError(t, s.Close())
}

func TestStore_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.log")
	s, err := Create(nil, path, DefaultOptions())
	require.NoError(t, err)
	off, err := s.Append(testRecord(3))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ro, err := OpenReadOnly(path, Options{})
	require.NoError(t, err)
	assert.True(t, ro.ReadOnly())

	_, err = ro.Append(testRecord(4))
	assert.ErrorIs(t, err, ErrReadOnly)
	require.NoError(t, ro.Sync())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := ro.Read(off)
			assert.NoError(t, err)
			assert.Equal(t, "3", rec.Key())
		}()
	}
	wg.Wait()

	require.NoError(t, ro.Close())
	_, err = ro.Read(off)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_CorruptFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.log")
	s, err := Create(nil, path, DefaultOptions())
	require.NoError(t, err)
	off, err := s.Append(testRecord(1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	ro, err := OpenReadOnly(path, Options{})
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Read(off)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = ro.Read(off + 1)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = ro.Read(1 << 30)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = ro.Read(0)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_BadHeader(t *testing.T) {
	dir := t.TempDir()

	cases := map[string][]byte{
		"empty":     {},
		"truncated": []byte("TRIP"),
		"magic":     []byte("NOTRECS\x00\x01\x00\x00\x00\x00\x04json"),
		"codec":     []byte("TRIPRECS\x01\x00\x00\x00\x00\x03xml"),
		"compress":  []byte("TRIPRECS\x01\x00\x00\x00\x09\x04json"),
	}
	for name, data := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err := Open(nil, path, Options{})
		assert.ErrorIs(t, err, ErrCorrupt, name)

		_, err = OpenReadOnly(path, Options{})
		assert.ErrorIs(t, err, ErrCorrupt, name)
	}

	path := filepath.Join(dir, "version")
	require.NoError(t, os.WriteFile(path, []byte("TRIPRECS\x02\x00\x00\x00\x00\x04json"), 0o644))
	_, err := Open(nil, path, Options{})
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestStore_TornTailTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.log")

	s, err := Create(nil, path, DefaultOptions())
	require.NoError(t, err)
	_, err = s.Append(testRecord(0))
	require.NoError(t, err)
	require.NoError(t, s.Sync())
	good := s.Size()

	frame, err := s.encodeFrame(testRecord(1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(frame[:len(frame)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ro, err := OpenReadOnly(path, Options{})
	require.NoError(t, err)
	assert.Greater(t, ro.Size(), good)
	require.NoError(t, ro.Close())

	s, err = Open(nil, path, Options{})
	require.NoError(t, err)
	assert.Equal(t, good, s.Size())

	off, err := s.Append(testRecord(2))
	require.NoError(t, err)
	assert.Equal(t, good, off)
	require.NoError(t, s.Close())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, fi.Size(), good)
}

func TestStore_TornWriteFault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.log")
	hdrSize := header{codec: codec.Default}.size()

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule("records.log", fs.Fault{FailAfterBytes: hdrSize + 40, TornWrite: true})

	s, err := Create(ffs, path, DefaultOptions())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = s.Append(testRecord(i))
		require.NoError(t, err)
	}
	assert.ErrorIs(t, s.Sync(), fs.ErrInjected)
	_ = s.Close()

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, hdrSize+40, fi.Size())

	// The first frame is longer than the bytes that made it to disk.
	s, err = Open(nil, path, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, hdrSize, s.Size())

	n := 0
	require.NoError(t, s.scan(func(int64, model.Record) error { n++; return nil }))
	assert.Zero(t, n)
}

func TestStore_FrameLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.log")
	s, err := Create(nil, path, Options{MaxFrameSize: 16})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append(testRecord(1))
	assert.Error(t, err)
}
