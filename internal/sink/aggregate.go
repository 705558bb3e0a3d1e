package sink

import (
	"cmp"
	"slices"

	"github.com/hupe1980/tripdb/model"
)

// Stats keys.
const (
	StatCount         = "count"
	StatAvgDistance   = "avg_distance"
	StatAvgAmount     = "avg_amount"
	StatAvgPassengers = "avg_passengers"
	StatTotalAmount   = "total_amount"
)

// Aggregator accumulates count and sums over matched records.
type Aggregator struct {
	count      int
	distance   float64
	amount     float64
	passengers int64
}

// Emit adds rec to the running sums.
func (a *Aggregator) Emit(rec model.Record) (bool, error) {
	a.count++
	a.distance += rec.Float(model.FieldTripDistance)
	a.amount += rec.Float(model.FieldTotalAmount)
	a.passengers += rec.Int(model.FieldPassengerCount)
	return true, nil
}

// Count returns the number of records seen.
func (a *Aggregator) Count() int { return a.count }

// Stats returns the aggregate. Averages and the total are present only when
// at least one record was seen.
func (a *Aggregator) Stats() map[string]float64 {
	stats := map[string]float64{StatCount: float64(a.count)}
	if a.count == 0 {
		return stats
	}
	n := float64(a.count)
	stats[StatAvgDistance] = a.distance / n
	stats[StatAvgAmount] = a.amount / n
	stats[StatAvgPassengers] = float64(a.passengers) / n
	stats[StatTotalAmount] = a.amount
	return stats
}

// Bucket is one value and the number of records that carried it.
type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Frequency counts the values of one field across all records.
type Frequency struct {
	field  model.Field
	counts map[string]int
	order  []string
}

// NewFrequency returns a counter over field.
func NewFrequency(field model.Field) *Frequency {
	return &Frequency{field: field, counts: make(map[string]int)}
}

// Emit counts the field value of rec.
func (f *Frequency) Emit(rec model.Record) (bool, error) {
	v := rec.Get(f.field)
	if _, ok := f.counts[v]; !ok {
		f.order = append(f.order, v)
	}
	f.counts[v]++
	return true, nil
}

// Len returns the number of distinct values seen.
func (f *Frequency) Len() int { return len(f.order) }

// Top returns up to limit buckets by descending count. Ties keep the order in
// which the values were first seen. A negative limit returns all.
func (f *Frequency) Top(limit int) []Bucket {
	buckets := make([]Bucket, len(f.order))
	for i, v := range f.order {
		buckets[i] = Bucket{Value: v, Count: f.counts[v]}
	}
	slices.SortStableFunc(buckets, func(a, b Bucket) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if limit >= 0 && len(buckets) > limit {
		buckets = buckets[:limit]
	}
	return buckets
}
