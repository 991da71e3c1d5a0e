package modules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLibraryOpen      = errors.New("modules: library open failed")
	ErrSymbolResolution = errors.New("modules: required symbols missing")
	ErrModuleRuntime    = errors.New("modules: module call failed")
	ErrNotInitialized   = errors.New("modules: module not initialized")
)

// OpenError reports a loader rejection for a module file.
type OpenError struct {
	Role       Role
	Path       string
	Diagnostic string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open %s module %s\n%s", e.Role, e.Path, e.Diagnostic)
}

func (e *OpenError) Unwrap() error { return ErrLibraryOpen }

// SymbolError names the required entry points a module file does not export.
type SymbolError struct {
	Role    Role
	Path    string
	Missing []string
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("failed to load required symbols from %s (%s module)\nmissing: %s",
		e.Path, e.Role, strings.Join(e.Missing, ", "))
}

func (e *SymbolError) Unwrap() error { return ErrSymbolResolution }

// RuntimeError is a panic recovered while calling into a module entry point.
type RuntimeError struct {
	Role  Role
	Entry string
	Cause any
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s module %s() failed: %v", e.Role, e.Entry, e.Cause)
}

func (e *RuntimeError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return errors.Join(ErrModuleRuntime, err)
	}
	return ErrModuleRuntime
}
