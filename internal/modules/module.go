package modules

import (
	"path/filepath"
	"sync"

	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/rs/zerolog/log"
)

// module is the role-independent half of every adapter: one owned library
// plus the resolved entry point table.
type module struct {
	mu    sync.RWMutex
	role  Role
	lib   *dynlib.Library
	path  string
	procs map[string]dynlib.Proc
}

func (m *module) setup(role Role, loader dynlib.Loader) {
	m.role = role
	m.lib = dynlib.New(loader)
}

// open loads path and resolves every required symbol. On any failure the
// library is closed again and no entry point is kept.
func (m *module) open(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.procs = nil
	m.path = ""
	if err := m.lib.Open(path); err != nil {
		diag := m.lib.Error()
		if diag == "" {
			diag = err.Error()
		}
		return &OpenError{Role: m.role, Path: path, Diagnostic: diag}
	}

	names := requiredSymbols[m.role]
	procs := make(map[string]dynlib.Proc, len(names))
	var missing []string
	for _, name := range names {
		p := m.lib.Symbol(name)
		if p == nil {
			missing = append(missing, name)
			continue
		}
		procs[name] = p
	}
	if len(missing) > 0 {
		m.lib.Close()
		return &SymbolError{Role: m.role, Path: path, Missing: missing}
	}

	m.path = m.lib.Name()
	m.procs = procs
	log.Debug().
		Str("role", string(m.role)).
		Str("path", m.path).
		Int("symbols", len(procs)).
		Msg("modules.module.open resolved")
	return nil
}

// invoke runs fn against the resolved entry point name. The read lock is held
// for the whole call so Close cannot unload the library underneath it.
func (m *module) invoke(name string, fn func(p dynlib.Proc)) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.procs[name]
	if !ok {
		return ErrNotInitialized
	}
	return m.call(name, func() { fn(p) })
}

// call invokes fn and converts a panic into a RuntimeError. This is the only
// place module failures cross back into Go error values.
func (m *module) call(entry string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{Role: m.role, Entry: entry, Cause: r}
		}
	}()
	fn()
	return nil
}

// initArgv calls an init(argc, argv)-shaped entry, optionally preceded by
// extra leading arguments. A failed init closes the library.
func (m *module) initArgv(args []string, lead ...uintptr) error {
	err := m.invoke(SymInit, func(p dynlib.Proc) {
		dynlib.WithArgv(args, func(argc, argv uintptr) {
			p.Call(append(lead, argc, argv)...)
		})
	})
	if err != nil {
		m.Close()
	}
	return err
}

// callVoid invokes a no-argument entry point.
func (m *module) callVoid(name string) error {
	return m.invoke(name, func(p dynlib.Proc) { p.Call() })
}

// entry returns a resolved entry point for forwarding by address.
func (m *module) entry(name string) dynlib.Proc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.procs[name]
}

// Role returns the adapter role.
func (m *module) Role() Role { return m.role }

// Path returns the resolved library path, empty before a successful Init.
func (m *module) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Name returns the base file name of the loaded module.
func (m *module) Name() string {
	path := m.Path()
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

// Initialized reports whether every entry point is resolved.
func (m *module) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.procs != nil
}

// Close releases the library. Entry points are invalid afterwards.
func (m *module) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs = nil
	m.path = ""
	m.lib.Close()
}
