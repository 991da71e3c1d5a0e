//go:build windows

package dynlib

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/windows"
)

type systemLoader struct{}

// System returns the platform loader (LoadLibrary).
func System() Loader {
	return systemLoader{}
}

func (systemLoader) Open(path string) (Handle, error) {
	h, err := windows.LoadLibrary(path)
	if err != nil {
		return nil, Error(err.Error())
	}
	if h == 0 {
		return nil, Error("LoadLibrary returned a null handle for " + path)
	}
	return sysHandle(h), nil
}

type sysHandle windows.Handle

func (h sysHandle) Lookup(name string) (Proc, error) {
	addr, err := windows.GetProcAddress(windows.Handle(h), name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSymbolNotFound, name, err)
	}
	if addr == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
	}
	return cProc(addr), nil
}

func (h sysHandle) Close() error {
	if h == 0 {
		return nil
	}
	return windows.FreeLibrary(windows.Handle(h))
}

type cProc uintptr

func (p cProc) Addr() uintptr { return uintptr(p) }

func (p cProc) Call(args ...uintptr) uintptr {
	r1, _, _ := syscall.SyscallN(uintptr(p), args...)
	return r1
}
