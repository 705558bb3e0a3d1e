// Package sink provides the consumers that query execution emits matched
// records into.
//
// A Sink returns more=false to ask the producer to stop. Stopping is a
// normal completion, not an error.
package sink
