package testutil

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripdb/filter"
	"github.com/hupe1980/tripdb/model"
)

func TestTrips(t *testing.T) {
	rng := NewRNG(4711)

	trips := rng.Trips(100, 10)

	require.Len(t, trips, 100)
	assert.Equal(t, "10", trips[0].Key())
	assert.Equal(t, "109", trips[99].Key())
	for i := range trips {
		assert.Positive(t, trips[i].Float(model.FieldTotalAmount))
		dest := trips[i].Int(model.FieldDOLocationID)
		assert.GreaterOrEqual(t, dest, int64(1))
		assert.LessOrEqual(t, dest, int64(Locations))
	}
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.Trips(5, 0)

	rng.Reset()
	v2 := rng.Trips(5, 0)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}

func TestZipf(t *testing.T) {
	rng := NewRNG(1)

	counts := make([]int, 10)
	for range 5000 {
		k := rng.Zipf(10, 1.5)
		require.GreaterOrEqual(t, k, 0)
		require.Less(t, k, 10)
		counts[k]++
	}
	assert.Greater(t, counts[0], counts[9])
	assert.Equal(t, 0, rng.Zipf(1, 1.5))
}

func TestCSV(t *testing.T) {
	trips := NewRNG(7).Trips(3, 0)

	_, err := csv.NewReader(bytes.NewReader(CSV(trips, []string{"short"}))).ReadAll()
	require.Error(t, err, "the short row has the wrong field count")

	rows, err := csv.NewReader(bytes.NewReader(CSV(trips))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, model.Header(), rows[0])
	assert.Equal(t, trips[2].Row(), rows[3])
}

func TestMatchingAndTopValues(t *testing.T) {
	recs := []model.Record{
		{Index: "1", DOLocationID: "b"},
		{Index: "2", DOLocationID: "a"},
		{Index: "3", DOLocationID: "a"},
		{Index: "4", DOLocationID: "b"},
		{Index: "5", DOLocationID: "c"},
	}

	got := Matching(recs, filter.Destination("a"))
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].Key())
	assert.Len(t, Matching(recs, nil), 5)

	assert.Equal(t, []ValueCount{{"b", 2}, {"a", 2}}, TopValues(recs, model.FieldDOLocationID, 2))
	assert.Len(t, TopValues(recs, model.FieldDOLocationID, -1), 3)
	assert.Empty(t, TopValues(recs, model.FieldDOLocationID, 0))
}
