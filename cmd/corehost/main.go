package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/corehost/internal/config"
	"github.com/danmuck/corehost/internal/core"
	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/danmuck/corehost/internal/extensions"
	"github.com/danmuck/corehost/internal/home"
	"github.com/danmuck/corehost/internal/logging"
	"github.com/danmuck/corehost/internal/tools"
)

const usage = `usage: corehost <command> [arguments]

commands:
  run -file <program> -cpu file <path> -gpu file <path> -mem file <path> [...]
      assemble the machine from three module libraries and run it
  inspect <file...>
      report which module ABI each library satisfies
  modules
      list the libraries in <home>/bin/modules with their roles
  config init|show|validate|path
      manage <home>/settings/host.toml
`

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	loader     dynlib.Loader
	runner     tools.CommandRunner
	executable string

	home home.Home
	cfg  config.HostConfig
	ext  *extensions.Loader
}

func newApp() *app {
	exe, err := os.Executable()
	if err != nil {
		exe = ""
	}
	return &app{
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		loader:     dynlib.System(),
		runner:     tools.ExecRunner{},
		executable: exe,
	}
}

func main() {
	logging.ConfigureRuntime()
	os.Exit(newApp().execute(context.Background(), os.Args[1:]))
}

// execute runs one command and returns the process exit code.
func (a *app) execute(ctx context.Context, args []string) int {
	if len(args) < 1 {
		fmt.Fprint(a.stderr, usage)
		return 2
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return 0
	case "run", "inspect", "modules", "config":
	default:
		a.report(&core.StepError{Step: "args", Err: fmt.Errorf("unknown argument: '%s'", cmd)})
		return 1
	}

	if err := a.bootstrap(ctx, cmd != "config"); err != nil {
		a.report(&core.StepError{Step: "bootstrap", Err: err})
		return 1
	}
	defer a.shutdown()

	var err error
	switch cmd {
	case "run":
		err = a.run(ctx, rest)
	case "inspect":
		err = a.inspect(rest)
	case "modules":
		err = a.listModules()
	case "config":
		err = a.configCmd(rest)
	}
	if err != nil {
		a.report(err)
		return 1
	}
	return 0
}

func (a *app) report(err error) {
	var step *core.StepError
	if !errors.As(err, &step) {
		err = &core.StepError{Step: "corehost", Err: err}
	}
	fmt.Fprintln(a.stderr, err)
}

func (a *app) shutdown() {
	if a.ext != nil {
		a.ext.Close()
	}
}
