// Package dynlibtest provides an in-process dynlib.Loader whose libraries are
// maps of Go functions. It counts opens and closes so tests can check handle
// accounting.
package dynlibtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/corehost/internal/dynlib"
)

var ErrUnknownAddr = errors.New("dynlibtest: unknown proc address")

// Func is a fake entry point. Arguments arrive exactly as the host passed them.
type Func func(args ...uintptr) uintptr

// Library maps exported symbol names to fake entry points.
type Library map[string]Func

// Loader serves registered fake libraries by exact path.
type Loader struct {
	mu     sync.Mutex
	libs   map[string]Library
	addrs  map[string]map[string]uintptr
	procs  map[uintptr]Func
	next   uintptr
	opens  int
	closes int
	opened []string
}

// NewLoader returns an empty fake loader.
func NewLoader() *Loader {
	return &Loader{
		libs:  make(map[string]Library),
		addrs: make(map[string]map[string]uintptr),
		procs: make(map[uintptr]Func),
		next:  0x1000,
	}
}

// Add registers lib under path. Each symbol gets a stable fake address.
func (l *Loader) Add(path string, lib Library) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.libs[path] = lib
	addrs := make(map[string]uintptr, len(lib))
	for name, fn := range lib {
		l.next += 0x10
		addrs[name] = l.next
		l.procs[l.next] = fn
	}
	l.addrs[path] = addrs
}

// Open implements dynlib.Loader.
func (l *Loader) Open(path string) (dynlib.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.libs[path]; !ok {
		return nil, dynlib.Error(fmt.Sprintf("%s: cannot open shared object file: No such file or directory", path))
	}
	l.opens++
	l.opened = append(l.opened, path)
	return &handle{loader: l, path: path}, nil
}

// Call invokes the fake entry point registered at addr, as a module would
// when it calls a function pointer it was handed.
func (l *Loader) Call(addr uintptr, args ...uintptr) (uintptr, error) {
	l.mu.Lock()
	fn, ok := l.procs[addr]
	l.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %#x", ErrUnknownAddr, addr)
	}
	return fn(args...), nil
}

// Addr returns the fake address of symbol in the library registered at path.
func (l *Loader) Addr(path, symbol string) uintptr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addrs[path][symbol]
}

// Opens returns the number of successful opens.
func (l *Loader) Opens() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opens
}

// Closes returns the number of handle releases.
func (l *Loader) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// Opened returns the paths passed to successful opens, in order.
func (l *Loader) Opened() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.opened...)
}

type handle struct {
	loader *Loader
	path   string
	closed bool
}

func (h *handle) Lookup(name string) (dynlib.Proc, error) {
	h.loader.mu.Lock()
	defer h.loader.mu.Unlock()

	if h.closed {
		return nil, dynlib.ErrNotOpen
	}
	fn, ok := h.loader.libs[h.path][name]
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w: %s", dynlib.ErrSymbolNotFound, name)
	}
	return proc{addr: h.loader.addrs[h.path][name], fn: fn}, nil
}

func (h *handle) Close() error {
	h.loader.mu.Lock()
	defer h.loader.mu.Unlock()

	if h.closed {
		return errors.New("dynlibtest: handle closed twice")
	}
	h.closed = true
	h.loader.closes++
	return nil
}

type proc struct {
	addr uintptr
	fn   Func
}

func (p proc) Addr() uintptr { return p.addr }

func (p proc) Call(args ...uintptr) uintptr { return p.fn(args...) }

// Noop is an entry point that does nothing and returns zero.
func Noop(args ...uintptr) uintptr { return 0 }
