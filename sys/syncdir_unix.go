//go:build unix

package sys

import (
	"os"
	"path/filepath"
)

// SyncDir fsyncs the directory at dir so that entry creations, removals
// and renames inside it survive a crash.
func SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// SyncParentDir fsyncs the directory containing path.
func SyncParentDir(path string) error {
	return SyncDir(filepath.Dir(path))
}
