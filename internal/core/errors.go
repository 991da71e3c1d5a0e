package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/corehost/internal/modules"
)

var (
	ErrFileNotFound = errors.New("core: module file not found")
	ErrValidation   = errors.New("core: module validation failed")
	ErrInvalidPhase = errors.New("core: invalid phase transition")
)

// FileNotFoundError names every path tried for a module file.
type FileNotFoundError struct {
	Role  modules.Role
	Tried []string
}

func (e *FileNotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("%s file: no file argument given\nCannot continue..", label(e.Role))
	}
	return fmt.Sprintf("%s file: %s not found\nCannot continue..", label(e.Role), strings.Join(e.Tried, " or "))
}

func (e *FileNotFoundError) Unwrap() error { return ErrFileNotFound }

// ProbeFailure is one module file that did not pass the open probe.
type ProbeFailure struct {
	Role       modules.Role
	Path       string
	Diagnostic string
}

// ValidationError aggregates every failing probe of one validation pass.
type ValidationError struct {
	Failures []ProbeFailure
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	for i, f := range e.Failures {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s file `%s`", label(f.Role), f.Path)
		if f.Diagnostic != "" {
			fmt.Fprintf(&b, ": %s", f.Diagnostic)
		}
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Roles lists the failing roles in probe order.
func (e *ValidationError) Roles() []modules.Role {
	out := make([]modules.Role, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Role)
	}
	return out
}

// RunError is the joined outcome of the execution units. Primary is the
// surfaced failure (cpu before gpu); Secondary is the other unit's failure
// when both failed.
type RunError struct {
	Primary   error
	Secondary error
}

func (e *RunError) Error() string {
	if e.Secondary == nil {
		return e.Primary.Error()
	}
	return e.Primary.Error() + "\n(secondary failure logged)"
}

func (e *RunError) Unwrap() error { return e.Primary }

// StepError carries the failing step name and renders the multi-line
// diagnostic printed by the host process.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "> [err] %s:", e.Step)
	for _, line := range strings.Split(strings.TrimRight(e.Err.Error(), "\n"), "\n") {
		b.WriteString("\n> ")
		b.WriteString(line)
	}
	return b.String()
}

func (e *StepError) Unwrap() error { return e.Err }

func label(role modules.Role) string {
	if role == modules.RoleMemory {
		return "MEM"
	}
	return strings.ToUpper(string(role))
}
