package planner

import (
	"github.com/hupe1980/tripdb/filter"
)

// Kind is an execution strategy.
type Kind int

const (
	// FullScan streams the whole source.
	FullScan Kind = iota
	// IndexLookup fetches a single key from the index.
	IndexLookup
)

func (k Kind) String() string {
	switch k {
	case IndexLookup:
		return "index_lookup"
	case FullScan:
		return "full_scan"
	default:
		return "unknown"
	}
}

// Choice is the plan for a filter.
type Choice struct {
	Kind Kind
	Key  string
}

// Plan returns IndexLookup when f is a key equality, or an AND with a key
// equality among its direct children (the first one wins). Everything else
// is a FullScan.
func Plan(f filter.Filter) Choice {
	if k, ok := filter.KeyEquality(f); ok {
		return Choice{Kind: IndexLookup, Key: k}
	}
	if and, ok := f.(filter.And); ok {
		for _, child := range and {
			if k, ok := filter.KeyEquality(child); ok {
				return Choice{Kind: IndexLookup, Key: k}
			}
		}
	}
	return Choice{Kind: FullScan}
}
