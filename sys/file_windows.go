//go:build windows

package sys

import (
	"os"

	"golang.org/x/sys/windows"
)

// osFile implements File for Windows.
type osFile struct{}

// NewFile returns the platform File implementation.
func NewFile() File {
	return &osFile{}
}

func (*osFile) OpenFile(name string, flag int, perm os.FileMode) (FileHandle, error) {
	return os.OpenFile(name, flag, perm)
}

// Stdin duplicates the stdin handle so the returned handle can be closed
// without closing the process's real standard input.
func (*osFile) Stdin() (FileHandle, error) {
	cur := windows.Handle(os.Stdin.Fd())
	proc := windows.CurrentProcess()
	var dup windows.Handle
	err := windows.DuplicateHandle(proc, cur, proc, &dup, 0, false, windows.DUPLICATE_SAME_ACCESS)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(dup), "stdin"), nil
}

func (*osFile) Remove(name string) error {
	return os.Remove(name)
}

func (*osFile) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}
