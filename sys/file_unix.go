//go:build unix

package sys

import (
	"os"
	"syscall"
)

// osFile implements File directly on top of the os package. Unix-like
// systems need no special sharing modes.
type osFile struct{}

// NewFile returns the platform File implementation.
func NewFile() File {
	return &osFile{}
}

func (*osFile) OpenFile(name string, flag int, perm os.FileMode) (FileHandle, error) {
	return os.OpenFile(name, flag, perm)
}

// Stdin duplicates the stdin descriptor so the returned handle can be
// closed without closing the process's real standard input.
func (*osFile) Stdin() (FileHandle, error) {
	fd, err := syscall.Dup(int(os.Stdin.Fd()))
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), "/dev/stdin"), nil
}

func (*osFile) Remove(name string) error {
	return os.Remove(name)
}

func (*osFile) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}
