//go:build unix

package sys

import (
	"os"
	"syscall"
)

// acquireOSFileLock opens (or creates) lockPath and takes a non-blocking
// exclusive flock on it. The returned release function unlocks, closes
// and removes the lock file.
func acquireOSFileLock(lockPath string) (func() error, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	fd := int(f.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, err
	}

	release := func() error {
		_ = syscall.Flock(fd, syscall.LOCK_UN)
		_ = f.Close()
		_ = os.Remove(lockPath)
		return nil
	}
	return release, nil
}
