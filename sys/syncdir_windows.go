//go:build windows

package sys

// Directories cannot be fsynced on Windows; NTFS journals metadata
// updates itself, so these are no-ops.

// SyncDir is a no-op on Windows.
func SyncDir(dir string) error {
	return nil
}

// SyncParentDir is a no-op on Windows.
func SyncParentDir(path string) error {
	return nil
}
