package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/corehost/internal/config"
	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/danmuck/corehost/internal/dynlib/dynlibtest"
	"github.com/danmuck/corehost/internal/home"
	"github.com/danmuck/corehost/internal/testutil/testlog"
	"github.com/danmuck/corehost/internal/tools"
)

type presentRunner struct{}

func (presentRunner) Run(context.Context, string, ...string) (tools.Result, error) {
	return tools.Result{}, nil
}

type harness struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	loader *dynlibtest.Loader
	dir    string

	mu    sync.Mutex
	calls []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testlog.Start(t)
	dir := t.TempDir()
	t.Setenv(home.EnvHome, filepath.Join(dir, "home"))
	t.Setenv(config.EnvConfig, "")

	h := &harness{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		loader: dynlibtest.NewLoader(),
		dir:    dir,
	}
	h.app = &app{
		stdout: h.stdout,
		stderr: h.stderr,
		loader: h.loader,
		runner: presentRunner{},
	}
	return h
}

func (h *harness) entry(name string) dynlibtest.Func {
	return func(...uintptr) uintptr {
		h.mu.Lock()
		h.calls = append(h.calls, name)
		h.mu.Unlock()
		return 0
	}
}

// install writes name+suffix into the temp dir and registers lib for it.
func (h *harness) install(t *testing.T, name string, lib dynlibtest.Library) string {
	t.Helper()
	path := filepath.Join(h.dir, name+dynlib.Suffix)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	h.loader.Add(path, lib)
	return filepath.Join(h.dir, name)
}

func (h *harness) machine(t *testing.T, gpuSendBytes bool) []string {
	t.Helper()
	prog := filepath.Join(h.dir, "boot.bin")
	if err := os.WriteFile(prog, []byte{0x90}, 0o644); err != nil {
		t.Fatalf("write program: %v", err)
	}
	gpu := dynlibtest.Library{"init": h.entry("gpu.init"), "start": h.entry("gpu.start"), "stop": h.entry("gpu.stop")}
	if gpuSendBytes {
		gpu["send_bytes"] = dynlibtest.Noop
	}
	return []string{
		"run",
		"-file", prog,
		"-cpu", "file", h.install(t, "cpu", dynlibtest.Library{
			"init": h.entry("cpu.init"), "start": h.entry("cpu.start"), "stop": h.entry("cpu.stop"),
		}),
		"-gpu", "file", h.install(t, "gpu", gpu),
		"-mem", "file", h.install(t, "mem", dynlibtest.Library{
			"init": h.entry("memory.init"), "get_pointer": dynlibtest.Noop,
			"get_size": dynlibtest.Noop, "clear": h.entry("memory.clear"),
		}),
	}
}

func TestRunCommandDrivesMachine(t *testing.T) {
	h := newHarness(t)
	args := h.machine(t, true)

	if code := h.app.execute(context.Background(), args); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, h.stderr.String())
	}
	if len(h.calls) < 3 || strings.Join(h.calls[:3], ",") != "memory.init,gpu.init,cpu.init" {
		t.Fatalf("unexpected init order: %v", h.calls)
	}
	if h.calls[len(h.calls)-1] != "memory.clear" {
		t.Fatalf("memory not cleared last: %v", h.calls)
	}
	if h.loader.Opens() != h.loader.Closes() {
		t.Fatalf("handles leaked: opens=%d closes=%d", h.loader.Opens(), h.loader.Closes())
	}
	if _, err := os.Stat(filepath.Join(h.dir, "home", "include", "corehost", home.HeaderName)); err != nil {
		t.Fatalf("home not bootstrapped: %v", err)
	}
}

func TestRunCommandReportsMissingSymbols(t *testing.T) {
	h := newHarness(t)
	args := h.machine(t, false)

	if code := h.app.execute(context.Background(), args); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	out := h.stderr.String()
	if !strings.Contains(out, "> [err] init:") || !strings.Contains(out, "> missing: send_bytes") {
		t.Fatalf("unexpected diagnostic:\n%s", out)
	}
	for _, c := range h.calls {
		if strings.HasPrefix(c, "cpu.") {
			t.Fatalf("cpu touched after gpu init failed: %v", h.calls)
		}
	}
}

func TestRunCommandMissingModuleFile(t *testing.T) {
	h := newHarness(t)
	args := h.machine(t, true)
	args[len(args)-1] = filepath.Join(h.dir, "nomem")

	if code := h.app.execute(context.Background(), args); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	want := "MEM file: " + filepath.Join(h.dir, "nomem") + " or " + filepath.Join(h.dir, "nomem"+dynlib.Suffix) + " not found"
	if !strings.Contains(h.stderr.String(), want) {
		t.Fatalf("diagnostic missing %q:\n%s", want, h.stderr.String())
	}
}

func TestInspectReportsRoles(t *testing.T) {
	h := newHarness(t)
	h.machine(t, true)
	ext := h.install(t, "ext", dynlibtest.Library{"entry": dynlibtest.Noop})

	code := h.app.execute(context.Background(), []string{
		"inspect", filepath.Join(h.dir, "cpu"), filepath.Join(h.dir, "mem"), ext, filepath.Join(h.dir, "absent"),
	})
	if code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, h.stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("unexpected output:\n%s", h.stdout.String())
	}
	for i, want := range []string{"cpu", "memory", "extension", "unloadable:"} {
		fields := strings.Fields(lines[i+1])
		if len(fields) < 2 || fields[1] != want {
			t.Fatalf("line %d: want role %q, got %q", i+1, want, lines[i+1])
		}
	}
}

func TestConfigInitShowValidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if code := h.app.execute(ctx, []string{"config", "init"}); code != 0 {
		t.Fatalf("init exit %d: %s", code, h.stderr.String())
	}
	path := strings.TrimSpace(h.stdout.String())
	if path != filepath.Join(h.dir, "home", "settings", config.FileName) {
		t.Fatalf("unexpected config path %q", path)
	}

	h.stdout.Reset()
	if code := h.app.execute(ctx, []string{"config", "validate"}); code != 0 {
		t.Fatalf("validate exit %d: %s", code, h.stderr.String())
	}

	h.stdout.Reset()
	if code := h.app.execute(ctx, []string{"config", "show"}); code != 0 {
		t.Fatalf("show exit %d: %s", code, h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), "log_level") {
		t.Fatalf("show output missing keys:\n%s", h.stdout.String())
	}

	if code := h.app.execute(ctx, []string{"config", "init"}); code != 1 {
		t.Fatalf("second init must refuse to overwrite, got exit %d", code)
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	if code := h.app.execute(context.Background(), []string{"launch"}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(h.stderr.String(), "> unknown argument: 'launch'") {
		t.Fatalf("unexpected diagnostic:\n%s", h.stderr.String())
	}
	if code := h.app.execute(context.Background(), nil); code != 2 {
		t.Fatalf("expected usage exit 2, got %d", code)
	}
}

func TestRunWithAdminServerShutsDownAfterRun(t *testing.T) {
	h := newHarness(t)
	settings := filepath.Join(h.dir, "home", "settings")
	if err := os.MkdirAll(settings, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := "admin_addr = \"127.0.0.1:0\"\nextensions = false\nfeatures = []\n"
	if err := os.WriteFile(filepath.Join(settings, config.FileName), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if code := h.app.execute(context.Background(), h.machine(t, true)); code != 0 {
		t.Fatalf("exit %d, stderr:\n%s", code, h.stderr.String())
	}
	if h.app.ext != nil {
		t.Fatalf("extensions loaded although disabled")
	}
}
