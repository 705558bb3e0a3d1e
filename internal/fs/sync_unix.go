//go:build unix

package fs

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func syncDir(d *os.File) error {
	err := unix.Fsync(int(d.Fd()))
	// Some filesystems refuse fsync on directories.
	if errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOTSUP) {
		return nil
	}
	return err
}
