// Package planner decides between an index lookup and a full scan for a
// filter and executes the choice.
//
// An index lookup is verified against the whole filter and falls back to a
// full scan when the key is absent or the record does not match. Full scans
// stream the source, optionally filtering batches on several workers while
// emitting matches in source order, so a result bound stops sequential and
// sharded scans at the same record.
package planner
