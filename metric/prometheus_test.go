package metric

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripdb"
)

var _ tripdb.MetricsCollector = (*PrometheusCollector)(nil)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector("tripdb", reg)
	require.NoError(t, err)

	c.RecordBuild(1000, time.Second, nil)
	c.RecordQuery("get", "index_lookup", 1, 1, time.Millisecond, nil)
	c.RecordQuery("filter", "full_scan", 500, 20, time.Second, nil)
	c.RecordQuery("filter", "full_scan", 10, 0, time.Second, errors.New("boom"))
	c.RecordReinitialize(time.Second, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.builds.WithLabelValues("success")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(c.buildRecords))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queries.WithLabelValues("get", "index_lookup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.queries.WithLabelValues("filter", "full_scan", "error")))
	assert.Equal(t, 510.0, testutil.ToFloat64(c.recordsScanned.WithLabelValues("filter")))
	assert.Equal(t, 20.0, testutil.ToFloat64(c.recordsMatched.WithLabelValues("filter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reinits.WithLabelValues("success")))

	// A second registration of the same names fails.
	_, err = NewPrometheusCollector("tripdb", reg)
	assert.Error(t, err)
}
