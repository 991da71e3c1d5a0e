package core

import (
	"os"
	"path/filepath"

	"github.com/danmuck/corehost/internal/dynlib"
	"github.com/danmuck/corehost/internal/modules"
)

// FileKey is the argument group key naming the module file.
const FileKey = "file"

// ModuleSpec is one resolved module: its file and the raw argument group
// passed to its init entry.
type ModuleSpec struct {
	Role modules.Role
	Path string
	Args []string
}

// Plan is the resolved launch input for one run.
type Plan struct {
	Program string
	CPU     ModuleSpec
	GPU     ModuleSpec
	Memory  ModuleSpec
}

// Specs returns the module specs in initialization order.
func (p Plan) Specs() []ModuleSpec {
	return []ModuleSpec{p.Memory, p.GPU, p.CPU}
}

// FileArg returns the value of the last "file" pair in group.
func FileArg(group []string) string {
	var file string
	for i := 0; i+1 < len(group); i++ {
		if group[i] == FileKey {
			i++
			file = group[i]
		}
	}
	return file
}

// ResolveFile returns path if it exists, else path with the platform suffix
// when that exists.
func ResolveFile(role modules.Role, path string) (string, error) {
	if path == "" {
		return "", &FileNotFoundError{Role: role}
	}
	if exists(path) {
		return absolute(path), nil
	}
	suffixed := path + dynlib.Suffix
	if exists(suffixed) {
		return absolute(suffixed), nil
	}
	return "", &FileNotFoundError{Role: role, Tried: []string{path, suffixed}}
}

// ResolvePlan resolves each role's file from its argument group. Groups keep
// their raw tokens, file pair included, as the module argument vector.
func ResolvePlan(program string, groups map[modules.Role][]string) (Plan, error) {
	plan := Plan{Program: program}
	for _, role := range []modules.Role{modules.RoleCPU, modules.RoleGPU, modules.RoleMemory} {
		args := groups[role]
		path, err := ResolveFile(role, FileArg(args))
		if err != nil {
			return Plan{}, err
		}
		spec := ModuleSpec{Role: role, Path: path, Args: append([]string(nil), args...)}
		switch role {
		case modules.RoleCPU:
			plan.CPU = spec
		case modules.RoleGPU:
			plan.GPU = spec
		case modules.RoleMemory:
			plan.Memory = spec
		}
	}
	return plan, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func absolute(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
