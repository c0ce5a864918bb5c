//go:build unix

package mount

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryLock takes a non-blocking exclusive advisory lock. Contention
// returns an error and the mount degrades to read-only.
func tryLock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
