// Package resource bounds the cost of full scans.
//
// A Controller limits how many full scans of the source dataset run at once
// (golang.org/x/sync/semaphore) and how fast each scan may read the source
// (golang.org/x/time/rate). A nil *Controller imposes no limits.
package resource
