package modules_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/danmuck/corehost/internal/dynlib/dynlibtest"
	"github.com/danmuck/corehost/internal/modules"
	"github.com/danmuck/corehost/internal/testutil/testlog"
	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	argv  [][]string
}

func (r *recorder) entry(name string) dynlibtest.Func {
	return func(args ...uintptr) uintptr {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		return 0
	}
}

// initEntry records argv; lead is the number of arguments before argc.
func (r *recorder) initEntry(name string, lead int) dynlibtest.Func {
	return func(args ...uintptr) uintptr {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, name)
		r.argv = append(r.argv, dynlib.GoStrings(args[lead], args[lead+1]))
		return 0
	}
}

func memoryLib(r *recorder) dynlibtest.Library {
	return dynlibtest.Library{
		"init":        r.initEntry("memory.init", 0),
		"get_pointer": func(...uintptr) uintptr { return 0xbeef },
		"get_size":    func(...uintptr) uintptr { return 4096 },
		"clear":       r.entry("memory.clear"),
	}
}

func TestRequiredSymbolsPerRole(t *testing.T) {
	testlog.Start(t)
	want := map[modules.Role][]string{
		modules.RoleCPU:    {"start", "stop", "init"},
		modules.RoleGPU:    {"start", "stop", "send_bytes", "init"},
		modules.RoleMemory: {"get_pointer", "get_size", "clear", "init"},
	}
	for role, syms := range want {
		if diff := cmp.Diff(syms, modules.RequiredSymbols(role)); diff != "" {
			t.Fatalf("%s symbols mismatch (-want +got):\n%s", role, diff)
		}
	}
	if modules.Role("disk").Valid() {
		t.Fatalf("unknown role reported valid")
	}
}

func TestInitNamesExactlyMissingSymbolsAndCloses(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name    string
		lib     dynlibtest.Library
		init    func(loader dynlib.Loader) (func() bool, error)
		missing []string
	}{
		{
			name: "cpu",
			lib:  dynlibtest.Library{"stop": dynlibtest.Noop},
			init: func(loader dynlib.Loader) (func() bool, error) {
				c := modules.NewCPU(loader)
				acc := modules.Accessors{GetPointer: fakeProc(1), GetSize: fakeProc(2)}
				return c.Initialized, c.Init("/mods/x", acc, nil)
			},
			missing: []string{"start", "init"},
		},
		{
			name: "gpu",
			lib:  dynlibtest.Library{"start": dynlibtest.Noop, "init": dynlibtest.Noop},
			init: func(loader dynlib.Loader) (func() bool, error) {
				g := modules.NewGPU(loader)
				return g.Initialized, g.Init("/mods/x", nil)
			},
			missing: []string{"stop", "send_bytes"},
		},
		{
			name: "memory",
			lib:  dynlibtest.Library{"get_pointer": dynlibtest.Noop, "get_size": dynlibtest.Noop, "init": dynlibtest.Noop},
			init: func(loader dynlib.Loader) (func() bool, error) {
				m := modules.NewMemory(loader)
				return m.Initialized, m.Init("/mods/x", nil)
			},
			missing: []string{"clear"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loader := dynlibtest.NewLoader()
			loader.Add("/mods/x"+dynlib.Suffix, tc.lib)

			initialized, err := tc.init(loader)
			if !errors.Is(err, modules.ErrSymbolResolution) {
				t.Fatalf("expected symbol resolution error, got %v", err)
			}
			var symErr *modules.SymbolError
			if !errors.As(err, &symErr) {
				t.Fatalf("expected *SymbolError, got %T", err)
			}
			if diff := cmp.Diff(tc.missing, symErr.Missing); diff != "" {
				t.Fatalf("missing mismatch (-want +got):\n%s", diff)
			}
			if initialized() {
				t.Fatalf("partially resolved adapter reports initialized")
			}
			if loader.Opens() != loader.Closes() {
				t.Fatalf("library left open: opens=%d closes=%d", loader.Opens(), loader.Closes())
			}
		})
	}
}

func TestInitOpenFailureCarriesDiagnostic(t *testing.T) {
	testlog.Start(t)
	g := modules.NewGPU(dynlibtest.NewLoader())
	err := g.Init("/missing/gpu", nil)
	if !errors.Is(err, modules.ErrLibraryOpen) {
		t.Fatalf("expected library open error, got %v", err)
	}
	if !strings.Contains(err.Error(), "/missing/gpu"+dynlib.Suffix) {
		t.Fatalf("diagnostic missing path: %v", err)
	}
}

func TestCPUInitReceivesAccessorsAndArgv(t *testing.T) {
	testlog.Start(t)
	loader := dynlibtest.NewLoader()
	rec := &recorder{}
	loader.Add("/mods/mem"+dynlib.Suffix, memoryLib(rec))

	var gotPtrFn, gotSizeFn uintptr
	loader.Add("/mods/cpu"+dynlib.Suffix, dynlibtest.Library{
		"start": rec.entry("cpu.start"),
		"stop":  rec.entry("cpu.stop"),
		"init": func(args ...uintptr) uintptr {
			gotPtrFn, gotSizeFn = args[0], args[1]
			return rec.initEntry("cpu.init", 2)(args...)
		},
	})

	mem := modules.NewMemory(loader)
	if err := mem.Init("/mods/mem", []string{"size", "4096"}); err != nil {
		t.Fatalf("memory init: %v", err)
	}
	cpu := modules.NewCPU(loader)
	if err := cpu.Init("/mods/cpu", mem.Accessors(), []string{"clock", "4MHz"}); err != nil {
		t.Fatalf("cpu init: %v", err)
	}

	if gotPtrFn != loader.Addr("/mods/mem"+dynlib.Suffix, "get_pointer") {
		t.Fatalf("cpu got wrong get_pointer: %#x", gotPtrFn)
	}
	if gotSizeFn != loader.Addr("/mods/mem"+dynlib.Suffix, "get_size") {
		t.Fatalf("cpu got wrong get_size: %#x", gotSizeFn)
	}
	// The module calls the forwarded pointer as a function.
	if size, err := loader.Call(gotSizeFn); err != nil || size != 4096 {
		t.Fatalf("forwarded get_size returned %d, %v", size, err)
	}

	want := [][]string{{"size", "4096"}, {"clock", "4MHz"}}
	if diff := cmp.Diff(want, rec.argv); diff != "" {
		t.Fatalf("argv mismatch (-want +got):\n%s", diff)
	}
	if cpu.Name() != "cpu"+dynlib.Suffix {
		t.Fatalf("unexpected name: %q", cpu.Name())
	}
}

func TestCPUInitRequiresAccessors(t *testing.T) {
	testlog.Start(t)
	loader := dynlibtest.NewLoader()
	cpu := modules.NewCPU(loader)
	if err := cpu.Init("/mods/cpu", modules.Accessors{}, nil); !errors.Is(err, modules.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if loader.Opens() != 0 {
		t.Fatalf("cpu opened a library without accessors")
	}
}

func TestMemoryValues(t *testing.T) {
	testlog.Start(t)
	loader := dynlibtest.NewLoader()
	rec := &recorder{}
	loader.Add("/mods/mem"+dynlib.Suffix, memoryLib(rec))

	mem := modules.NewMemory(loader)
	if _, err := mem.GetSize(); !errors.Is(err, modules.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized before init, got %v", err)
	}
	if mem.Accessors().Valid() {
		t.Fatalf("accessors bound before init")
	}
	if err := mem.Init("/mods/mem", nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	ptr, err := mem.GetPointer()
	if err != nil || ptr != 0xbeef {
		t.Fatalf("GetPointer = %#x, %v", ptr, err)
	}
	size, err := mem.GetSize()
	if err != nil || size != 4096 {
		t.Fatalf("GetSize = %d, %v", size, err)
	}
	if err := mem.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if diff := cmp.Diff([]string{"memory.init", "memory.clear"}, rec.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}

	mem.Close()
	if mem.Initialized() || mem.Path() != "" {
		t.Fatalf("closed adapter still initialized")
	}
	if loader.Opens() != loader.Closes() {
		t.Fatalf("handle leaked: opens=%d closes=%d", loader.Opens(), loader.Closes())
	}
}

func TestGPUSendBytes(t *testing.T) {
	testlog.Start(t)
	loader := dynlibtest.NewLoader()
	var got [][]byte
	loader.Add("/mods/gpu"+dynlib.Suffix, dynlibtest.Library{
		"init":  dynlibtest.Noop,
		"start": dynlibtest.Noop,
		"stop":  dynlibtest.Noop,
		"send_bytes": func(args ...uintptr) uintptr {
			got = append(got, dynlib.GoBytes(args[0], args[1]))
			return 0
		},
	})

	gpu := modules.NewGPU(loader)
	if err := gpu.SendBytes([]byte{1}); !errors.Is(err, modules.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := gpu.Init("/mods/gpu", nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := gpu.SendBytes([]byte("frame")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := gpu.SendBytes(nil); err != nil {
		t.Fatalf("send empty: %v", err)
	}
	want := [][]byte{[]byte("frame"), nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestPanicBecomesRuntimeError(t *testing.T) {
	testlog.Start(t)
	loader := dynlibtest.NewLoader()
	boom := errors.New("illegal instruction")
	loader.Add("/mods/gpu"+dynlib.Suffix, dynlibtest.Library{
		"init":       dynlibtest.Noop,
		"start":      func(...uintptr) uintptr { panic(boom) },
		"stop":       func(...uintptr) uintptr { panic("stop twice") },
		"send_bytes": dynlibtest.Noop,
	})

	gpu := modules.NewGPU(loader)
	if err := gpu.Init("/mods/gpu", nil); err != nil {
		t.Fatalf("init: %v", err)
	}

	err := gpu.Start()
	var rtErr *modules.RuntimeError
	if !errors.As(err, &rtErr) || rtErr.Entry != "start" || rtErr.Role != modules.RoleGPU {
		t.Fatalf("unexpected start error: %#v", err)
	}
	if !errors.Is(err, modules.ErrModuleRuntime) || !errors.Is(err, boom) {
		t.Fatalf("runtime error chain incomplete: %v", err)
	}

	err = gpu.Stop()
	if !errors.Is(err, modules.ErrModuleRuntime) || !strings.Contains(err.Error(), "stop twice") {
		t.Fatalf("unexpected stop error: %v", err)
	}
}

func TestInitPanicClosesLibrary(t *testing.T) {
	testlog.Start(t)
	loader := dynlibtest.NewLoader()
	loader.Add("/mods/mem"+dynlib.Suffix, dynlibtest.Library{
		"init":        func(...uintptr) uintptr { panic("bad args") },
		"get_pointer": dynlibtest.Noop,
		"get_size":    dynlibtest.Noop,
		"clear":       dynlibtest.Noop,
	})
	mem := modules.NewMemory(loader)
	if err := mem.Init("/mods/mem", []string{"size", "-1"}); !errors.Is(err, modules.ErrModuleRuntime) {
		t.Fatalf("expected runtime error, got %v", err)
	}
	if mem.Initialized() || loader.Opens() != loader.Closes() {
		t.Fatalf("failed init kept library open")
	}
}

func TestDetect(t *testing.T) {
	testlog.Start(t)
	loader := dynlibtest.NewLoader()
	rec := &recorder{}
	loader.Add("/mods/mem"+dynlib.Suffix, memoryLib(rec))
	loader.Add("/mods/both"+dynlib.Suffix, dynlibtest.Library{
		"init":       dynlibtest.Noop,
		"start":      dynlibtest.Noop,
		"stop":       dynlibtest.Noop,
		"send_bytes": dynlibtest.Noop,
	})
	loader.Add("/mods/none"+dynlib.Suffix, dynlibtest.Library{"entry": dynlibtest.Noop})

	cases := map[string][]modules.Role{
		"/mods/mem":  {modules.RoleMemory},
		"/mods/both": {modules.RoleGPU, modules.RoleCPU},
		"/mods/none": nil,
	}
	for path, want := range cases {
		lib := dynlib.New(loader)
		if err := lib.Open(path); err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		if diff := cmp.Diff(want, modules.Detect(lib)); diff != "" {
			t.Fatalf("%s roles mismatch (-want +got):\n%s", path, diff)
		}
		lib.Close()
	}
}

type fakeProc uintptr

func (p fakeProc) Addr() uintptr { return uintptr(p) }
func (p fakeProc) Call(...uintptr) uintptr { return 0 }
