//go:build !unix

package lock

import "os"

// Advisory locking is unsupported here; the in-process writer mutex still
// serializes mutation within one process.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
