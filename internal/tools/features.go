package tools

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultFeatures are the helper programs probed at startup.
var DefaultFeatures = []string{"python3", "curl", "clear"}

// Features maps a program name to its probe exit code; 0 means present.
type Features map[string]int

// Has reports whether name was probed and found.
func (f Features) Has(name string) bool {
	code, ok := f[name]
	return ok && code == 0
}

// Missing returns the probed programs that were not found, sorted.
func (f Features) Missing() []string {
	var out []string
	for name, code := range f {
		if code != 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// FeatureProbe checks for host programs and caches the last result.
type FeatureProbe struct {
	runner CommandRunner
	goos   string

	mu   sync.Mutex
	last Features
}

// NewFeatureProbe returns a probe using runner, or ExecRunner when nil.
func NewFeatureProbe(runner CommandRunner) *FeatureProbe {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &FeatureProbe{runner: runner, goos: runtime.GOOS}
}

// Probe looks up each name through the platform shell. An empty names list
// returns the previous result.
func (p *FeatureProbe) Probe(ctx context.Context, names ...string) Features {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(names) == 0 {
		return p.last
	}

	out := make(Features, len(names))
	for _, name := range names {
		var res Result
		if p.goos == "windows" {
			res, _ = p.runner.Run(ctx, "where", name)
		} else {
			res, _ = p.runner.Run(ctx, "sh", "-c", `command -v "$1"`, "sh", name)
		}
		out[name] = res.ExitCode
		log.Debug().Str("feature", name).Int("code", res.ExitCode).Msg("tools.FeatureProbe.Probe")
	}
	p.last = out
	return out
}

// HasAll reports whether every probed program is present.
func (p *FeatureProbe) HasAll() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.last.Missing()) == 0
}
