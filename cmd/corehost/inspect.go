package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/danmuck/corehost/internal/extensions"
	"github.com/danmuck/corehost/internal/home"
	"github.com/danmuck/corehost/internal/modules"
)

func (a *app) inspect(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("inspect: no files given")
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tROLES")
	for _, path := range paths {
		fmt.Fprintf(w, "%s\t%s\n", path, a.describe(path))
	}
	return w.Flush()
}

func (a *app) listModules() error {
	files, err := home.ListRegularFiles(a.home.Modules())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tROLES")
	for _, path := range files {
		fmt.Fprintf(w, "%s\t%s\n", filepath.Base(path), a.describe(path))
	}
	return w.Flush()
}

// describe opens path and names every role whose ABI it satisfies.
func (a *app) describe(path string) string {
	lib := dynlib.New(a.loader)
	if err := lib.Open(path); err != nil {
		return "unloadable: " + firstLine(lib.Error())
	}
	defer lib.Close()

	var names []string
	for _, role := range modules.Detect(lib) {
		names = append(names, string(role))
	}
	if lib.Symbol(extensions.EntrySymbol) != nil {
		names = append(names, "extension")
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
