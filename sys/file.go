// Package sys abstracts the OS-level primitives the log depends on:
// file handles, advisory locking, renames, and directory durability.
// The default implementation is swappable so tests can inject faults.
package sys

import (
	"io"
	"os"
	"sync/atomic"
)

// FileHandle is the subset of *os.File operations the log performs on
// its backing file.
type FileHandle interface {
	io.ReadWriteCloser
	io.Seeker

	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
	Name() string
}

// File opens and manipulates files on behalf of the log. Implementations
// must be safe for use from a single goroutine at a time.
type File interface {
	OpenFile(name string, flag int, perm os.FileMode) (FileHandle, error)
	// Stdin returns a read-only handle on standard input, independent of
	// os.Stdin so that closing it does not disturb the process.
	Stdin() (FileHandle, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
}

// fileWrapper gives atomic.Value a stable concrete type to store, since
// different File implementations may be swapped in by tests.
type fileWrapper struct {
	f File
}

var defaultFile atomic.Value // stores fileWrapper

func init() {
	defaultFile.Store(fileWrapper{f: NewFile()})
}

// SetDefaultFile replaces the package-level File implementation.
// Intended for tests.
func SetDefaultFile(f File) {
	defaultFile.Store(fileWrapper{f: f})
}

// Default returns the current package-level File implementation.
func Default() File {
	fw, ok := defaultFile.Load().(fileWrapper)
	if !ok || fw.f == nil {
		return NewFile()
	}
	return fw.f
}

// OpenFile opens name via the default File implementation.
func OpenFile(name string, flag int, perm os.FileMode) (FileHandle, error) {
	return Default().OpenFile(name, flag, perm)
}

// Stdin returns a handle on standard input via the default File
// implementation.
func Stdin() (FileHandle, error) {
	return Default().Stdin()
}

// Remove removes name via the default File implementation.
func Remove(name string) error {
	return Default().Remove(name)
}

// Rename renames oldpath to newpath via the default File implementation.
func Rename(oldpath, newpath string) error {
	return Default().Rename(oldpath, newpath)
}
