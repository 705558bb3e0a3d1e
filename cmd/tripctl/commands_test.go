package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripdb"
	"github.com/hupe1980/tripdb/filter"
	"github.com/hupe1980/tripdb/model"
)

// writeDataset writes n rows to root/trips.csv. Drop-off locations cycle
// through 100..106 and total_amount is i%30 + 0.5.
func writeDataset(t *testing.T, root string, n int) {
	t.Helper()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(model.Header()))
	for i := 0; i < n; i++ {
		rec := model.Record{
			VendorID:       "1",
			PassengerCount: "1",
			TripDistance:   "2.00",
			DOLocationID:   strconv.Itoa(100 + i%7),
			TotalAmount:    strconv.Itoa(i%30) + ".50",
			Index:          strconv.Itoa(i),
		}
		require.NoError(t, w.Write(rec.Row()))
	}
	w.Flush()
	require.NoError(t, w.Error())
	require.NoError(t, os.WriteFile(filepath.Join(root, "trips.csv"), buf.Bytes(), 0o644))
}

type env struct {
	root string
	dir  string
}

func newEnv(t *testing.T, n int) env {
	e := env{root: t.TempDir(), dir: t.TempDir()}
	writeDataset(t, e.root, n)
	return e
}

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--root", e.root, "--dir", e.dir, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_BuildAndGet(t *testing.T) {
	e := newEnv(t, 21)

	out, err := e.run(t, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 21 records")

	out, err = e.run(t, "get", "5", "-o", "json")
	require.NoError(t, err)
	var recs []model.Record
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "5.50", recs[0].TotalAmount)

	out, err = e.run(t, "get", "5")
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.Header(), rows[0])

	_, err = e.run(t, "get", "999")
	assert.ErrorIs(t, err, tripdb.ErrNotFound)
}

func TestCommands_Filter(t *testing.T) {
	e := newEnv(t, 21)

	out, err := e.run(t, "filter", "--dest", "100", "--per-page", "2", "-o", "json")
	require.NoError(t, err)
	var res tripdb.PagedResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, res.Items, 2)

	path := filepath.Join(t.TempDir(), "out", "cheap.csv")
	out, err = e.run(t, "filter", "--max-amount", "2.5", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 3 records")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	out, err = e.run(t, "filter", "--max-amount", "2.5", "--max-results", "0", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 0 records")
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	rows, err = csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")

	out, err = e.run(t, "filter", "--key", "3", "--out-blob", "hits.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 records")
	_, err = os.Stat(filepath.Join(e.root, "hits.csv"))
	assert.NoError(t, err)
}

func TestCommands_StatsAndTop(t *testing.T) {
	e := newEnv(t, 21)

	out, err := e.run(t, "stats", "--range", "trip_distance=1:3", "-o", "json")
	require.NoError(t, err)
	var stats map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 21.0, stats["count"])
	assert.InDelta(t, 2.0, stats["avg_distance"], 1e-9)

	out, err = e.run(t, "top", "-n", "2", "-o", "json")
	require.NoError(t, err)
	var buckets []tripdb.Bucket
	require.NoError(t, json.Unmarshal([]byte(out), &buckets))
	assert.Equal(t, []tripdb.Bucket{{Value: "100", Count: 3}, {Value: "101", Count: 3}}, buckets)

	out, err = e.run(t, "top", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "DESTINATION")
	assert.Contains(t, out, "100")
}

func TestCommands_Metrics(t *testing.T) {
	e := newEnv(t, 5)
	_, err := e.run(t, "--metrics", "--codec", "row", "--compression", "lz4", "build")
	assert.NoError(t, err)
}

func TestCommands_FetchNeedsS3(t *testing.T) {
	e := newEnv(t, 1)
	_, err := e.run(t, "fetch", filepath.Join(t.TempDir(), "trips.csv"))
	assert.ErrorContains(t, err, "does not support fetch")
}

func TestFilterFlags(t *testing.T) {
	tests := []struct {
		name string
		ff   filterFlags
		want filter.Filter
	}{
		{"empty", filterFlags{}, nil},
		{"key", filterFlags{key: "7"}, filter.Key("7")},
		{"price", filterFlags{minAmount: "1", maxAmount: "2"}, filter.Price(filter.Float(1), filter.Float(2))},
		{"open bound", filterFlags{maxAmount: "2"}, filter.Price(nil, filter.Float(2))},
		{
			"conjunction",
			filterFlags{dest: "238", ranges: []string{"passenger_count=2:"}},
			filter.AndOf(filter.Destination("238"), filter.Between(model.FieldPassengerCount, filter.Float(2), nil)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ff.build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []filterFlags{
		{minAmount: "cheap"},
		{ranges: []string{"passenger_count"}},
		{ranges: []string{"color=1:2"}},
		{ranges: []string{"trip_distance=1"}},
		{ranges: []string{"trip_distance=a:2"}},
	} {
		_, err := bad.build()
		assert.Error(t, err)
	}
}
