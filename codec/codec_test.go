package codec

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/tripdb/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() model.Record {
	return model.Record{
		VendorID:       "2",
		PassengerCount: "1",
		TripDistance:   "3.20",
		DOLocationID:   "236",
		TotalAmount:    "18.8",
		Index:          "7",
	}
}

func mustMarshal(c Codec, v any) []byte {
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
	assert.Equal(t, []string{"go-json", "json", "row"}, Names())
}

func TestCodecs_Record(t *testing.T) {
	rec := testRecord()
	for _, c := range []Codec{JSON{}, GoJSON{}, Row{}} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal(rec)
			require.NoError(t, err)

			var got model.Record
			require.NoError(t, c.Unmarshal(b, &got))
			assert.Equal(t, rec, got)
		})
	}
}

func TestCodecs_Interchangeable(t *testing.T) {
	rec := testRecord()
	b := mustMarshal(GoJSON{}, rec)

	var got model.Record
	require.NoError(t, JSON{}.Unmarshal(b, &got))
	assert.Equal(t, rec, got)
}

// Records are encoded by index builds while other goroutines decode for
// readers, so encoding must not share memory with concurrent decodes.
func TestGoJSON_ConcurrentMarshalAndDecode(t *testing.T) {
	c := GoJSON{}
	payload := mustMarshal(c, testRecord())

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				var got model.Record
				if err := c.Unmarshal(payload, &got); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		for i := 0; i < 500; i++ {
			rec := testRecord()
			rec.Index = fmt.Sprint(i)
			b, err := AppendMarshal(c, nil, rec)
			if err != nil {
				errs <- err
				return
			}
			var got model.Record
			if err := c.Unmarshal(b, &got); err != nil {
				errs <- err
				return
			}
			if got != rec {
				errs <- fmt.Errorf("round trip %d: got %+v", i, got)
				return
			}
		}
	}()

	for err := range errs {
		t.Error(err)
	}
	wg.Wait()
}

func TestAppendMarshal(t *testing.T) {
	rec := testRecord()
	prefix := []byte("hdr")

	for _, c := range []Codec{JSON{}, GoJSON{}, nil} {
		out, err := AppendMarshal(c, append([]byte(nil), prefix...), rec)
		require.NoError(t, err)
		assert.Equal(t, "hdr", string(out[:3]))

		var got model.Record
		require.NoError(t, JSON{}.Unmarshal(out[3:], &got))
		assert.Equal(t, rec, got)
	}
}

func TestRow(t *testing.T) {
	rec := testRecord()
	rec.StoreAndFwdFlag = "Y,\"quoted\""

	b, err := Row{}.Marshal(&rec)
	require.NoError(t, err)
	j, err := GoJSON{}.Marshal(rec)
	require.NoError(t, err)
	assert.Less(t, len(b), len(j))

	var got model.Record
	require.NoError(t, Row{}.Unmarshal(b, &got))
	assert.Equal(t, rec, got)

	_, err = Row{}.Marshal("not a record")
	assert.Error(t, err)
	assert.Error(t, Row{}.Unmarshal(b, &struct{}{}))

	for _, bad := range [][]byte{nil, b[:len(b)-1], append(append([]byte(nil), b...), 0), {0x02}} {
		assert.ErrorIs(t, Row{}.Unmarshal(bad, &got), ErrMalformedRow)
	}
}

func BenchmarkCodecMarshal(b *testing.B) {
	rec := testRecord()
	for _, c := range []Codec{JSON{}, GoJSON{}, Row{}} {
		b.Run(c.Name(), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := c.Marshal(rec); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
