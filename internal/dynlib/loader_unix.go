//go:build darwin || freebsd || linux

package dynlib

import (
	"fmt"

	"github.com/ebitengine/purego"
)

type systemLoader struct{}

// System returns the platform loader (dlopen with lazy binding).
func System() Loader {
	return systemLoader{}
}

func (systemLoader) Open(path string) (Handle, error) {
	h, err := purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_LOCAL)
	if err != nil {
		return nil, Error(err.Error())
	}
	if h == 0 {
		return nil, Error("dlopen returned a null handle for " + path)
	}
	return sysHandle(h), nil
}

type sysHandle uintptr

func (h sysHandle) Lookup(name string) (Proc, error) {
	addr, err := purego.Dlsym(uintptr(h), name)
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
	return purego.Dlclose(uintptr(h))
}

// cProc is a C entry point called with the platform C calling convention.
type cProc uintptr

func (p cProc) Addr() uintptr { return uintptr(p) }

func (p cProc) Call(args ...uintptr) uintptr {
	r1, _, _ := purego.SyscallN(uintptr(p), args...)
	return r1
}
