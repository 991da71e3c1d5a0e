package dynlib

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrNotOpen        = errors.New("dynlib: library not open")
	ErrSymbolNotFound = errors.New("dynlib: symbol not found")
	ErrUnsupported    = errors.New("dynlib: dynamic loading unsupported on this platform")
)

// Error is a loader diagnostic as reported by dlerror or GetLastError.
type Error string

func (e Error) Error() string { return string(e) }

// Proc is one resolved entry point.
type Proc interface {
	// Addr is the raw entry address, forwarded as-is when a module expects a
	// function pointer argument.
	Addr() uintptr
	Call(args ...uintptr) uintptr
}

// Handle is one open loader handle.
type Handle interface {
	Lookup(name string) (Proc, error)
	Close() error
}

// Loader opens shared libraries by exact path.
type Loader interface {
	Open(path string) (Handle, error)
}

// Library owns at most one open Handle and releases it exactly once.
type Library struct {
	mu      sync.Mutex
	loader  Loader
	handle  Handle
	name    string
	lastErr string
}

// New returns a closed Library backed by loader, or by the system loader
// when loader is nil.
func New(loader Loader) *Library {
	if loader == nil {
		loader = System()
	}
	return &Library{loader: loader}
}

// BuildName appends the platform suffix when base does not already carry it.
func BuildName(base string) string {
	if base == "" || strings.HasSuffix(base, Suffix) {
		return base
	}
	return base + Suffix
}

// Open closes any previously open handle, then opens path with the platform
// suffix applied.
func (l *Library) Open(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeLocked()
	name := BuildName(path)
	if name == "" {
		l.lastErr = "empty library path"
		return Error(l.lastErr)
	}

	h, err := l.loader.Open(name)
	if err != nil {
		l.lastErr = err.Error()
		return fmt.Errorf("open %s: %w", name, err)
	}
	if h == nil {
		l.lastErr = "loader returned no handle"
		return fmt.Errorf("open %s: %w", name, Error(l.lastErr))
	}
	l.handle = h
	l.name = name
	l.lastErr = ""
	return nil
}

// Symbol resolves name, returning nil when the library is closed or the
// symbol is absent.
func (l *Library) Symbol(name string) Proc {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == nil {
		return nil
	}
	p, err := l.handle.Lookup(name)
	if err != nil || p == nil || p.Addr() == 0 {
		return nil
	}
	return p
}

// Close releases the handle if open. Safe to call repeatedly.
func (l *Library) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}

func (l *Library) closeLocked() {
	if l.handle == nil {
		return
	}
	if err := l.handle.Close(); err != nil {
		l.lastErr = err.Error()
	}
	l.handle = nil
	l.name = ""
}

// IsOpen reports whether a handle is currently held.
func (l *Library) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != nil
}

// Name returns the suffixed path of the open library, or "" when closed.
func (l *Library) Name() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.name
}

// Error returns the last loader diagnostic text.
func (l *Library) Error() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// OpenStatus is the result of a TestOpen probe.
type OpenStatus struct {
	IsOpen bool
	Error  string
	Path   string
}

// TestOpen opens path, records whether it loaded and releases it again.
func TestOpen(loader Loader, path string) OpenStatus {
	lib := New(loader)
	err := lib.Open(path)
	status := OpenStatus{
		IsOpen: err == nil,
		Error:  lib.Error(),
		Path:   absPath(path),
	}
	lib.Close()
	return status
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
