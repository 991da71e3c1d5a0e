package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is the captured outcome of one command.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// CommandRunner abstracts command execution so probes can be faked in tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

// Run executes name with args. A command that cannot be started reports
// exit code 127, matching a shell's "not found".
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, err
	}
	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		res.ExitCode = 127
	}
	return res, err
}
