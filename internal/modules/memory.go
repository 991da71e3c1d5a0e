package modules

import (
	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/rs/zerolog/log"
)

// Accessors are the Memory module's raw get_pointer and get_size entry
// points, forwarded unchanged into the CPU module's init.
type Accessors struct {
	GetPointer dynlib.Proc
	GetSize    dynlib.Proc
}

// Valid reports whether both accessors are bound.
func (a Accessors) Valid() bool {
	return a.GetPointer != nil && a.GetSize != nil
}

// Memory adapts a library exporting the memory provider ABI.
type Memory struct {
	module
}

// NewMemory returns an uninitialized Memory adapter.
func NewMemory(loader dynlib.Loader) *Memory {
	m := &Memory{}
	m.setup(RoleMemory, loader)
	return m
}

// Init opens path, resolves get_pointer, get_size, clear and init, then calls
// init(argc, argv).
func (m *Memory) Init(path string, args []string) error {
	if err := m.open(path); err != nil {
		return err
	}
	if err := m.initArgv(args); err != nil {
		return err
	}
	log.Info().Str("path", m.Path()).Int("argc", len(args)).Msg("modules.Memory.Init")
	return nil
}

// Accessors returns the bound accessor entry points, or zero Accessors before
// Init succeeds.
func (m *Memory) Accessors() Accessors {
	acc := Accessors{GetPointer: m.entry(SymGetPointer), GetSize: m.entry(SymGetSize)}
	if !acc.Valid() {
		return Accessors{}
	}
	return acc
}

// GetPointer returns the module's backing storage address.
func (m *Memory) GetPointer() (uintptr, error) {
	return m.value(SymGetPointer)
}

// GetSize returns the module's backing storage size in bytes.
func (m *Memory) GetSize() (uint64, error) {
	v, err := m.value(SymGetSize)
	return uint64(v), err
}

func (m *Memory) value(name string) (uintptr, error) {
	var v uintptr
	err := m.invoke(name, func(p dynlib.Proc) { v = p.Call() })
	return v, err
}

// Clear releases or resets the module's backing storage.
func (m *Memory) Clear() error {
	return m.callVoid(SymClear)
}
