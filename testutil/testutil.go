package testutil

import (
	"bytes"
	"encoding/csv"
	"math"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/hupe1980/tripdb/filter"
	"github.com/hupe1980/tripdb/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Zipf returns a Zipfian-distributed value in [0, n).
// P(k) ∝ 1/k^s where s is the skew parameter.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	// Inverse transform over the cumulative weights.
	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Locations is the number of distinct zone ids Trips draws from.
const Locations = 50

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Trips generates n ride records keyed firstKey, firstKey+1, ...
// Drop-off locations are Zipf-skewed so popularity rankings are stable.
// Amounts are formatted with two decimals like the public taxi datasets.
func (r *RNG) Trips(n, firstKey int) []model.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	trips := make([]model.Record, n)
	for i := range n {
		pickup := epoch.Add(time.Duration(r.rand.Intn(30*24*3600)) * time.Second)
		minutes := 2 + r.rand.Intn(45)
		dropoff := pickup.Add(time.Duration(minutes) * time.Minute)
		distance := 0.3 + r.rand.Float64()*15
		fare := 2.5 + distance*2.5
		tip := 0.0
		if r.rand.Intn(3) == 0 {
			tip = fare * 0.2
		}
		total := fare + 0.5 + 0.5 + 0.3 + tip

		trips[i] = model.Record{
			VendorID:             strconv.Itoa(1 + r.rand.Intn(2)),
			PickupDatetime:       pickup.Format(time.DateTime),
			DropoffDatetime:      dropoff.Format(time.DateTime),
			PassengerCount:       strconv.Itoa(1 + r.rand.Intn(6)),
			TripDistance:         money(distance),
			RatecodeID:           "1",
			StoreAndFwdFlag:      "N",
			PULocationID:         strconv.Itoa(1 + r.rand.Intn(Locations)),
			DOLocationID:         strconv.Itoa(1 + r.zipfLocked(Locations, 1.2)),
			PaymentType:          strconv.Itoa(1 + r.rand.Intn(2)),
			FareAmount:           money(fare),
			Extra:                "0.50",
			MTATax:               "0.50",
			TipAmount:            money(tip),
			TollsAmount:          "0.00",
			ImprovementSurcharge: "0.30",
			TotalAmount:          money(total),
			CongestionSurcharge:  "2.50",
			Index:                strconv.Itoa(firstKey + i),
		}
	}
	return trips
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// CSV renders recs as a dataset with a header row. extra rows are appended
// verbatim, which lets tests inject malformed input.
func CSV(recs []model.Record, extra ...[]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(model.Header())
	for i := range recs {
		_ = w.Write(recs[i].Row())
	}
	for _, row := range extra {
		_ = w.Write(row)
	}
	w.Flush()
	return buf.Bytes()
}

// Matching returns the records of recs that satisfy f, in order.
func Matching(recs []model.Record, f filter.Filter) []model.Record {
	var out []model.Record
	for i := range recs {
		if filter.Matches(f, &recs[i]) {
			out = append(out, recs[i])
		}
	}
	return out
}

// ValueCount is a field value with its number of occurrences.
type ValueCount struct {
	Value string
	Count int
}

// TopValues counts field across recs and returns the limit most frequent
// values. Ties are ordered by first appearance. A negative limit returns all.
func TopValues(recs []model.Record, field model.Field, limit int) []ValueCount {
	var order []ValueCount
	pos := make(map[string]int)
	for i := range recs {
		v := recs[i].Get(field)
		p, ok := pos[v]
		if !ok {
			p = len(order)
			pos[v] = p
			order = append(order, ValueCount{Value: v})
		}
		order[p].Count++
	}
	slices.SortStableFunc(order, func(a, b ValueCount) int { return b.Count - a.Count })
	if limit >= 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}
