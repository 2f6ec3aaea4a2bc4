//go:build !windows

// internal/pager/lock_unix.go
package pager

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrDatabaseLocked is returned by Open when another process already
// holds the exclusive lock on the same file. The spec's concurrency
// model (§5) says concurrent Pagers against one file are outside the
// spec; this lock turns that into a fast, clear failure instead of
// silent corruption.
var ErrDatabaseLocked = errors.New("pager: database file is locked by another process")

// lockFile acquires a non-blocking exclusive advisory lock on f.
func lockFile(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrDatabaseLocked
		}
		return err
	}
	return nil
}

// unlockFile releases the lock acquired by lockFile.
func unlockFile(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
