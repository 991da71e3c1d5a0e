//go:build darwin || freebsd || linux

package stdio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func redirect(stream Stream, f *os.File) error {
	var fd int
	switch stream {
	case Stdin:
		fd = unix.Stdin
	case Stdout:
		fd = unix.Stdout
	case Stderr:
		fd = unix.Stderr
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}
	return dup(int(f.Fd()), fd)
}
