package modules

import (
	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/rs/zerolog/log"
)

// GPU adapts a library exporting the GPU executor ABI.
type GPU struct {
	module
}

// NewGPU returns an uninitialized GPU adapter.
func NewGPU(loader dynlib.Loader) *GPU {
	g := &GPU{}
	g.setup(RoleGPU, loader)
	return g
}

// Init opens path, resolves start, stop, send_bytes and init, then calls
// init(argc, argv).
func (g *GPU) Init(path string, args []string) error {
	if err := g.open(path); err != nil {
		return err
	}
	if err := g.initArgv(args); err != nil {
		return err
	}
	log.Info().Str("path", g.Path()).Int("argc", len(args)).Msg("modules.GPU.Init")
	return nil
}

func (g *GPU) Start() error { return g.callVoid(SymStart) }

func (g *GPU) Stop() error { return g.callVoid(SymStop) }

// SendBytes forwards b to send_bytes(ptr, len). The module owns flow control.
func (g *GPU) SendBytes(b []byte) error {
	return g.invoke(SymSendBytes, func(p dynlib.Proc) {
		dynlib.WithBytes(b, func(ptr, n uintptr) { p.Call(ptr, n) })
	})
}
