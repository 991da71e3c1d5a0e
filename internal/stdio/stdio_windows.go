package stdio

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func redirect(stream Stream, f *os.File) error {
	var std uint32
	switch stream {
	case Stdin:
		std = windows.STD_INPUT_HANDLE
	case Stdout:
		std = windows.STD_OUTPUT_HANDLE
	case Stderr:
		std = windows.STD_ERROR_HANDLE
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStream, stream)
	}

	var dup windows.Handle
	proc := windows.CurrentProcess()
	if err := windows.DuplicateHandle(proc, windows.Handle(f.Fd()), proc, &dup, 0, true, windows.DUPLICATE_SAME_ACCESS); err != nil {
		return err
	}
	if err := windows.SetStdHandle(std, dup); err != nil {
		windows.CloseHandle(dup)
		return err
	}
	replace(stream, os.NewFile(uintptr(dup), string(stream)))
	return nil
}

func replace(stream Stream, f *os.File) {
	switch stream {
	case Stdin:
		os.Stdin = f
	case Stdout:
		os.Stdout = f
	case Stderr:
		os.Stderr = f
	}
}
