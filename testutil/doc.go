// Package testutil provides testing utilities for tripdb.
//
// This package is intended for use in tests and benchmarks only.
// It generates reproducible ride datasets and computes reference query
// answers by brute force.
//
// # Dataset Generation
//
//	rng := testutil.NewRNG(seed)
//	trips := rng.Trips(10_000, 0) // keys "0".."9999"
//	data := testutil.CSV(trips)   // header + rows
//
// # Reference Answers
//
//	want := testutil.Matching(trips, f)
//	top := testutil.TopValues(trips, model.FieldDOLocationID, 10)
package testutil
