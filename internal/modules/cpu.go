package modules

import (
	"fmt"

	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/rs/zerolog/log"
)

// Executor is the blocking start / graceful stop pair shared by CPU and GPU.
type Executor interface {
	Start() error
	Stop() error
}

// CPU adapts a library exporting the CPU executor ABI.
type CPU struct {
	module
}

// NewCPU returns an uninitialized CPU adapter.
func NewCPU(loader dynlib.Loader) *CPU {
	c := &CPU{}
	c.setup(RoleCPU, loader)
	return c
}

// Init opens path, resolves start, stop and init, then calls
// init(get_pointer, get_size, argc, argv) with the Memory accessors.
func (c *CPU) Init(path string, acc Accessors, args []string) error {
	if !acc.Valid() {
		return fmt.Errorf("%w: memory accessors not bound", ErrNotInitialized)
	}
	if err := c.open(path); err != nil {
		return err
	}
	if err := c.initArgv(args, acc.GetPointer.Addr(), acc.GetSize.Addr()); err != nil {
		return err
	}
	log.Info().Str("path", c.Path()).Int("argc", len(args)).Msg("modules.CPU.Init")
	return nil
}

// Start blocks for the lifetime of CPU execution.
func (c *CPU) Start() error { return c.callVoid(SymStart) }

// Stop requests a graceful CPU shutdown.
func (c *CPU) Stop() error { return c.callVoid(SymStop) }
