// Package filter evaluates boolean predicates over ride records.
//
// A filter is a tree of leaves (Range, Equal) and nodes (And, Or). Evaluation
// is pure and short-circuits left to right:
//
//	f := filter.AndOf(
//		filter.Price(filter.Float(10), nil),
//		filter.Destination("236"),
//	)
//	if filter.Matches(f, &rec) { ... }
//
// Numeric leaves parse the record field as float64; unparsable text counts
// as 0. And with no children matches everything, Or with no children matches
// nothing.
package filter
