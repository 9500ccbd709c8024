//go:build windows

package sys

import (
	"os"

	"golang.org/x/sys/windows"
)

// acquireOSFileLock opens (or creates) lockPath and locks a single byte
// via LockFileEx, failing immediately if the lock is held elsewhere.
func acquireOSFileLock(lockPath string) (func() error, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	h := windows.Handle(f.Fd())
	var ov windows.Overlapped
	err = windows.LockFileEx(h, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, &ov)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	release := func() error {
		_ = windows.UnlockFileEx(h, 0, 1, 0, &ov)
		_ = f.Close()
		_ = os.Remove(lockPath)
		return nil
	}
	return release, nil
}
