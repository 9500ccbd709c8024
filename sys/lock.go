package sys

// A log file's lock lives alongside it at path + lockSuffix. The lock is
// advisory: it excludes cooperating writers, nothing else.
const lockSuffix = ".lock"

// AcquireFileLock acquires an exclusive advisory lock guarding path.
// It does not block or retry: if another process holds the lock the
// error is returned immediately. On success it returns a release
// function that unlocks and removes the lock file.
func AcquireFileLock(path string) (func() error, error) {
	return acquireOSFileLock(path + lockSuffix)
}
