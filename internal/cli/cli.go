// Package cli groups "run" arguments into the program file, the core group
// and one argument group per module role.
//
// Grouping rules:
// - "-file <path>" names the program; the file must exist
//
// - "-core|-cpu|-gpu|-mem <key> <value>" appends the pair to that group;
//   the flag name is case-insensitive
//
// - any other token goes to the core group unchanged
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/corehost/internal/modules"
	"github.com/danmuck/corehost/internal/stdio"
)

var (
	ErrProgramNotFound = errors.New("cli: program file not found")
	ErrRedirectFile    = errors.New("cli: redirect file not found")
)

// Redirect is one core-group stream redirection.
type Redirect struct {
	Stream stdio.Stream
	Path   string
}

// Args is the grouped form of a run command line.
type Args struct {
	Program   string
	Core      []string
	Groups    map[modules.Role][]string
	Redirects []Redirect
}

var groupFlags = map[string]modules.Role{
	"-cpu": modules.RoleCPU,
	"-gpu": modules.RoleGPU,
	"-mem": modules.RoleMemory,
}

// Parse groups args. The program file is resolved to an absolute path.
func Parse(args []string) (Args, error) {
	out := Args{Groups: make(map[modules.Role][]string, len(groupFlags))}
	var program string

	for i := 0; i < len(args); i++ {
		flag := strings.ToLower(args[i])
		switch {
		case flag == "-file" && i+1 < len(args):
			i++
			program = args[i]
		case flag == "-core" && i+2 < len(args):
			out.Core = append(out.Core, args[i+1], args[i+2])
			i += 2
		case groupFlags[flag] != "" && i+2 < len(args):
			role := groupFlags[flag]
			out.Groups[role] = append(out.Groups[role], args[i+1], args[i+2])
			i += 2
		default:
			out.Core = append(out.Core, args[i])
		}
	}

	if _, err := os.Stat(program); err != nil {
		return Args{}, fmt.Errorf("%w: File: %s not found\nCannot continue..", ErrProgramNotFound, program)
	}
	abs, err := filepath.Abs(program)
	if err != nil {
		return Args{}, fmt.Errorf("%w: %v", ErrProgramNotFound, err)
	}
	out.Program = abs

	redirects, err := parseRedirects(out.Core)
	if err != nil {
		return Args{}, err
	}
	out.Redirects = redirects
	return out, nil
}

// parseRedirects reads -stdout/-stderr/-stdin <file> pairs from the core
// group. Each file must exist.
func parseRedirects(core []string) ([]Redirect, error) {
	var out []Redirect
	for i := 0; i+1 < len(core); i++ {
		switch core[i] {
		case "-stdout", "-stderr", "-stdin":
		default:
			continue
		}
		stream, err := stdio.ParseStream(core[i])
		if err != nil {
			return nil, err
		}
		i++
		path := core[i]
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: Failed to open %s file: %s", ErrRedirectFile, stream, path)
		}
		out = append(out, Redirect{Stream: stream, Path: path})
	}
	return out, nil
}

// WithDefaults places each role's default tokens in front of its command-line
// group, so command-line pairs win for repeated keys.
func (a Args) WithDefaults(defaults map[modules.Role][]string) Args {
	groups := make(map[modules.Role][]string, len(a.Groups)+len(defaults))
	for role, group := range a.Groups {
		groups[role] = append([]string(nil), group...)
	}
	for role, def := range defaults {
		if len(def) == 0 {
			continue
		}
		groups[role] = append(append([]string(nil), def...), groups[role]...)
	}
	a.Groups = groups
	return a
}
