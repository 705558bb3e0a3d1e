// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with positional read/write, sync and truncate
//   - [FileSystem]: filesystem operations (open, remove, rename, directory sync, ...)
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility that injects write, sync and close failures
//
// # Usage
//
// Production code uses fs.Default:
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
//
// Tests inject [FaultyFS] to simulate a crash in the middle of a write:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("records.log", fs.Fault{FailAfterBytes: 128})
//
// Filesystem calls take no context.Context. Local operations are not
// interruptible at the syscall level; remote sources go through blobstore.
package fs
