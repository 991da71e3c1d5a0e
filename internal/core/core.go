package core

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/danmuck/corehost/internal/modules"
	"github.com/danmuck/corehost/internal/observability"
	"github.com/rs/zerolog/log"
)

// Core owns the three module adapters for one run.
type Core struct {
	mu      sync.Mutex
	loader  dynlib.Loader
	phase   Phase
	plan    Plan
	lastErr error

	cpu *modules.CPU
	gpu *modules.GPU
	mem *modules.Memory

	stop atomic.Bool
}

// New returns an uninitialized Core using the system loader.
func New() *Core {
	return NewWithLoader(nil)
}

// NewWithLoader returns an uninitialized Core whose adapters open libraries
// through loader. A nil loader selects the system loader.
func NewWithLoader(loader dynlib.Loader) *Core {
	if loader == nil {
		loader = dynlib.System()
	}
	return &Core{
		loader: loader,
		cpu:    modules.NewCPU(loader),
		gpu:    modules.NewGPU(loader),
		mem:    modules.NewMemory(loader),
	}
}

// Phase returns the current lifecycle phase.
func (c *Core) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// StopRequested reports whether an execution unit failed during the run.
func (c *Core) StopRequested() bool {
	return c.stop.Load()
}

func (c *Core) transition(from, to Phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidPhase, from, to, c.phase)
	}
	c.phase = to
	return nil
}

func (c *Core) fail(err error) {
	c.mu.Lock()
	c.phase = PhaseFailed
	c.lastErr = err
	c.mu.Unlock()
}

// Validate probes all three module files and reports every failing one in a
// single ValidationError. The plan is kept only when all three open.
func (c *Core) Validate(plan Plan) error {
	c.mu.Lock()
	if c.phase != PhaseUninitialized {
		phase := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: validate from %s", ErrInvalidPhase, phase)
	}
	c.mu.Unlock()

	probes := []ModuleSpec{plan.CPU, plan.GPU, plan.Memory}
	var failures []ProbeFailure
	for _, spec := range probes {
		status := dynlib.TestOpen(c.loader, spec.Path)
		if status.IsOpen {
			log.Debug().Str("role", string(spec.Role)).Str("path", status.Path).Msg("core.Core.Validate probe ok")
			continue
		}
		observability.RecordValidationFailure(string(spec.Role))
		failures = append(failures, ProbeFailure{Role: spec.Role, Path: status.Path, Diagnostic: status.Error})
	}
	if len(failures) > 0 {
		err := &ValidationError{Failures: failures}
		log.Error().Int("failures", len(failures)).Msg("core.Core.Validate failed")
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.plan = plan
	c.phase = PhaseValidated
	c.mu.Unlock()
	log.Info().Str("program", plan.Program).Msg("core.Core.Validate")
	return nil
}

// Initialize runs memory, gpu then cpu init, stopping at the first failure.
// The cpu init receives the memory accessors.
func (c *Core) Initialize() error {
	c.mu.Lock()
	if c.phase != PhaseValidated {
		phase := c.phase
		c.mu.Unlock()
		return fmt.Errorf("%w: initialize from %s", ErrInvalidPhase, phase)
	}
	plan := c.plan
	c.mu.Unlock()

	steps := []struct {
		spec ModuleSpec
		init func() error
	}{
		{plan.Memory, func() error { return c.mem.Init(plan.Memory.Path, plan.Memory.Args) }},
		{plan.GPU, func() error { return c.gpu.Init(plan.GPU.Path, plan.GPU.Args) }},
		{plan.CPU, func() error { return c.cpu.Init(plan.CPU.Path, c.mem.Accessors(), plan.CPU.Args) }},
	}
	for _, step := range steps {
		started := time.Now()
		err := step.init()
		observability.RecordModuleInit(string(step.spec.Role), time.Since(started), err)
		if err != nil {
			log.Error().Err(err).Str("role", string(step.spec.Role)).Msg("core.Core.Initialize failed")
			c.closeModules()
			c.fail(err)
			return err
		}
	}

	if err := c.transition(PhaseValidated, PhaseInitialized); err != nil {
		return err
	}
	log.Info().Msg("core.Core.Initialize")
	return nil
}

// Start runs the cpu and gpu units concurrently, each on its own OS thread,
// and blocks until both return. Memory is cleared once after the join. A
// failing unit sets the stop flag but does not interrupt the other unit.
func (c *Core) Start() error {
	if err := c.transition(PhaseInitialized, PhaseRunning); err != nil {
		return err
	}
	log.Info().Msg("core.Core.Start units launched")

	var (
		wg     sync.WaitGroup
		cpuErr error
		gpuErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		cpuErr = c.runUnit(modules.RoleCPU, c.cpu, func() {
			// The flag is not forwarded to the module; it is read for the log only.
			log.Debug().Bool("stop_requested", c.stop.Load()).Msg("core.Core.Start cpu stopping")
		})
	}()
	go func() {
		defer wg.Done()
		gpuErr = c.runUnit(modules.RoleGPU, c.gpu, nil)
	}()
	wg.Wait()

	clearErr := c.mem.Clear()
	if clearErr != nil {
		log.Error().Err(clearErr).Msg("core.Core.Start memory clear failed")
	}

	runErr := joinRun(cpuErr, gpuErr, clearErr)
	if runErr != nil {
		if runErr.Secondary != nil {
			log.Error().Err(runErr.Secondary).Msg("core.Core.Start secondary failure not surfaced")
		}
		c.fail(runErr)
		return runErr
	}
	if err := c.transition(PhaseRunning, PhaseStopped); err != nil {
		return err
	}
	log.Info().Msg("core.Core.Start stopped")
	return nil
}

// runUnit calls start then stop on exec. Failure in start skips stop. The
// goroutine stays locked so its thread is discarded when the unit returns.
func (c *Core) runUnit(role modules.Role, exec modules.Executor, beforeStop func()) error {
	runtime.LockOSThread()
	started := time.Now()

	err := exec.Start()
	if err == nil {
		if beforeStop != nil {
			beforeStop()
		}
		err = exec.Stop()
	}
	observability.RecordUnitRun(string(role), time.Since(started), err)
	if err != nil {
		c.stop.Store(true)
		log.Error().Err(err).Str("role", string(role)).Msg("core.Core.runUnit failed")
		return err
	}
	log.Info().Str("role", string(role)).Dur("elapsed", time.Since(started)).Msg("core.Core.runUnit done")
	return nil
}

func joinRun(cpuErr, gpuErr, clearErr error) *RunError {
	switch {
	case cpuErr != nil:
		return &RunError{Primary: cpuErr, Secondary: gpuErr}
	case gpuErr != nil:
		return &RunError{Primary: gpuErr}
	case clearErr != nil:
		return &RunError{Primary: clearErr}
	}
	return nil
}

// Run drives a resolved plan through validate, init and start. Failures are
// tagged with the step name.
func (c *Core) Run(plan Plan) error {
	if err := c.Validate(plan); err != nil {
		return &StepError{Step: "validate", Err: err}
	}
	if err := c.Initialize(); err != nil {
		return &StepError{Step: "init", Err: err}
	}
	if err := c.Start(); err != nil {
		return &StepError{Step: "run", Err: err}
	}
	return nil
}

// SendBytes forwards b to the gpu module.
func (c *Core) SendBytes(b []byte) error {
	return c.gpu.SendBytes(b)
}

// Close releases every module library.
func (c *Core) Close() {
	c.closeModules()
}

func (c *Core) closeModules() {
	c.cpu.Close()
	c.gpu.Close()
	c.mem.Close()
}

// ModuleStatus is the read-only view of one adapter.
type ModuleStatus struct {
	Role        modules.Role `json:"role"`
	Path        string       `json:"path"`
	Initialized bool         `json:"initialized"`
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	Phase         string         `json:"phase"`
	Program       string         `json:"program,omitempty"`
	StopRequested bool           `json:"stop_requested"`
	Modules       []ModuleStatus `json:"modules"`
	MemorySize    *uint64        `json:"memory_size,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Status snapshots phase, plan and adapter state. Memory size is queried only
// while the memory module is initialized.
func (c *Core) Status() Status {
	c.mu.Lock()
	st := Status{
		Phase:         c.phase.String(),
		Program:       c.plan.Program,
		StopRequested: c.stop.Load(),
	}
	if c.lastErr != nil {
		st.Error = c.lastErr.Error()
	}
	plan := c.plan
	c.mu.Unlock()

	st.Modules = []ModuleStatus{
		{Role: modules.RoleMemory, Path: pathOr(c.mem.Path(), plan.Memory.Path), Initialized: c.mem.Initialized()},
		{Role: modules.RoleGPU, Path: pathOr(c.gpu.Path(), plan.GPU.Path), Initialized: c.gpu.Initialized()},
		{Role: modules.RoleCPU, Path: pathOr(c.cpu.Path(), plan.CPU.Path), Initialized: c.cpu.Initialized()},
	}
	if c.mem.Initialized() {
		if size, err := c.mem.GetSize(); err == nil {
			st.MemorySize = &size
		}
	}
	return st
}

func pathOr(path, fallback string) string {
	if path != "" {
		return path
	}
	return fallback
}
