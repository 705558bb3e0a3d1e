package compress

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock(t *testing.T) {
	compressible := []byte(strings.Repeat(`{"vendor_id":"2","total_amount":"12.5"}`, 64))
	tiny := []byte("x")

	for _, typ := range []Type{None, LZ4, ZSTD} {
		for _, data := range [][]byte{compressible, tiny, {}} {
			block, err := AppendBlock([]byte("pre"), data, typ)
			require.NoError(t, err)
			assert.Equal(t, "pre", string(block[:3]))

			got, err := DecodeBlock(block[3:], typ)
			require.NoError(t, err, typ.String())
			assert.Equal(t, data, got)
		}
	}
}

func TestBlock_Compresses(t *testing.T) {
	data := []byte(strings.Repeat("abcdefgh", 1024))
	for _, typ := range []Type{LZ4, ZSTD} {
		block, err := AppendBlock(nil, data, typ)
		require.NoError(t, err)
		assert.Less(t, len(block), len(data)/2, typ.String())
	}
}

func TestDecodeBlock_Corrupt(t *testing.T) {
	_, err := DecodeBlock([]byte{1, 2}, ZSTD)
	assert.ErrorIs(t, err, ErrCorrupt)

	block, err := AppendBlock(nil, []byte(strings.Repeat("z", 512)), LZ4)
	require.NoError(t, err)
	_, err = DecodeBlock(block[:len(block)-1], LZ4)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{None, LZ4, ZSTD} {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("brotli")
	assert.Error(t, err)
	assert.False(t, Type(9).Valid())
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatGzip, DetectFormat("trips.csv.gz"))
	assert.Equal(t, FormatZstd, DetectFormat("s3/trips.CSV.ZST"))
	assert.Equal(t, FormatLZ4, DetectFormat("trips.csv.lz4"))
	assert.Equal(t, FormatRaw, DetectFormat("trips.csv"))
}

func TestNewReader(t *testing.T) {
	payload := []byte(strings.Repeat("a,b,c\n", 100))

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var zs bytes.Buffer
	zw, err := zstd.NewWriter(&zs)
	require.NoError(t, err)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var l4 bytes.Buffer
	lw := lz4.NewWriter(&l4)
	_, err = lw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, lw.Close())

	cases := map[Format][]byte{
		FormatRaw:  payload,
		FormatGzip: gz.Bytes(),
		FormatZstd: zs.Bytes(),
		FormatLZ4:  l4.Bytes(),
	}
	for f, data := range cases {
		rc, err := NewReader(bytes.NewReader(data), f)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, payload, got)
	}
}
