// Package extensions loads optional plugin libraries best-effort.
//
// A scan lists the regular files of one directory. Loading opens each file,
// counts it as opened, and when it exports "entry" calls it once and counts
// it as loaded. Nothing here returns a per-file error.
package extensions

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/danmuck/corehost/internal/observability"
	"github.com/rs/zerolog/log"
)

// EntrySymbol is the optional no-argument extension entry point.
const EntrySymbol = "entry"

// Scanner lists candidate files; home.DirCache satisfies it.
type Scanner interface {
	Entries(reload bool) ([]string, error)
}

// Descriptor is one scanned extension file.
type Descriptor struct {
	Path   string
	Name   string
	Opened bool
	Loaded bool
	lib    *dynlib.Library
}

// Report is the aggregate outcome of LoadAll.
type Report struct {
	Found  int `json:"found"`
	Opened int `json:"opened"`
	Loaded int `json:"loaded"`
}

func (r Report) String() string {
	return fmt.Sprintf("found %d, opened %d, loaded %d extensions", r.Found, r.Opened, r.Loaded)
}

// Loader owns the descriptors of the last scan and their libraries.
type Loader struct {
	scanner Scanner
	loader  dynlib.Loader

	mu     sync.Mutex
	descs  []*Descriptor
	report Report
}

// New returns a Loader scanning through scanner and opening files with
// loader, or the system loader when nil.
func New(scanner Scanner, loader dynlib.Loader) *Loader {
	if loader == nil {
		loader = dynlib.System()
	}
	return &Loader{scanner: scanner, loader: loader}
}

// Scan lists the extension files. Without reload a non-empty previous scan
// is reused. On a scan error the descriptor list is empty.
func (l *Loader) Scan(reload bool) ([]Descriptor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.scanLocked(reload)
	return l.snapshotLocked(), err
}

func (l *Loader) scanLocked(reload bool) error {
	if !reload && len(l.descs) > 0 {
		return nil
	}
	paths, err := l.scanner.Entries(reload)
	if err != nil {
		paths = nil
	}
	l.closeLocked()
	l.descs = make([]*Descriptor, 0, len(paths))
	for _, path := range paths {
		l.descs = append(l.descs, &Descriptor{
			Path: path,
			Name: filepath.Base(path),
			lib:  dynlib.New(l.loader),
		})
	}
	return err
}

// LoadAll rescans, then opens every file and calls its entry when present.
// It never fails; the counts are the only outcome.
func (l *Loader) LoadAll() Report {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.scanLocked(true); err != nil {
		log.Debug().Err(err).Msg("extensions.Loader.LoadAll scan failed")
	}
	report := Report{Found: len(l.descs)}
	for _, d := range l.descs {
		if err := d.lib.Open(d.Path); err != nil {
			log.Debug().Str("path", d.Path).Str("diag", d.lib.Error()).Msg("extensions.Loader.LoadAll open failed")
			continue
		}
		d.Opened = true
		report.Opened++

		entry := d.lib.Symbol(EntrySymbol)
		if entry == nil {
			continue
		}
		if invoke(d.Path, entry) {
			d.Loaded = true
			report.Loaded++
		}
	}

	l.report = report
	observability.SetExtensions(report.Found, report.Opened, report.Loaded)
	log.Info().Int("found", report.Found).Int("opened", report.Opened).Int("loaded", report.Loaded).Msg("extensions.Loader.LoadAll")
	return report
}

func invoke(path string, entry dynlib.Proc) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("path", path).Interface("panic", r).Msg("extensions.invoke entry failed")
			ok = false
		}
	}()
	entry.Call()
	return true
}

// Report returns the counts of the last LoadAll.
func (l *Loader) Report() Report {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.report
}

func (l *Loader) snapshotLocked() []Descriptor {
	out := make([]Descriptor, 0, len(l.descs))
	for _, d := range l.descs {
		out = append(out, Descriptor{Path: d.Path, Name: d.Name, Opened: d.Opened, Loaded: d.Loaded})
	}
	return out
}

// Close releases every extension library. Loaded extensions stay resident in
// the process only as long as their handles are open.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}

func (l *Loader) closeLocked() {
	for _, d := range l.descs {
		d.lib.Close()
	}
}
