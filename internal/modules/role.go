package modules

import (
	"github.com/danmuck/corehost/internal/dynlib"
)

// Role is one of the three machine component kinds.
type Role string

const (
	RoleCPU    Role = "cpu"
	RoleGPU    Role = "gpu"
	RoleMemory Role = "memory"
)

// Exported entry point names.
const (
	SymInit       = "init"
	SymStart      = "start"
	SymStop       = "stop"
	SymSendBytes  = "send_bytes"
	SymGetPointer = "get_pointer"
	SymGetSize    = "get_size"
	SymClear      = "clear"
)

// Roles lists every role in initialization order.
var Roles = []Role{RoleMemory, RoleGPU, RoleCPU}

var requiredSymbols = map[Role][]string{
	RoleCPU:    {SymStart, SymStop, SymInit},
	RoleGPU:    {SymStart, SymStop, SymSendBytes, SymInit},
	RoleMemory: {SymGetPointer, SymGetSize, SymClear, SymInit},
}

// RequiredSymbols returns the ABI symbol set of role.
func RequiredSymbols(role Role) []string {
	return append([]string(nil), requiredSymbols[role]...)
}

func (r Role) Valid() bool {
	_, ok := requiredSymbols[r]
	return ok
}

// Detect reports every role whose full symbol set lib exports. A file can
// satisfy more than one role; the result follows Roles order.
func Detect(lib *dynlib.Library) []Role {
	var out []Role
	for _, role := range Roles {
		if len(missingSymbols(lib, requiredSymbols[role])) == 0 {
			out = append(out, role)
		}
	}
	return out
}

func missingSymbols(lib *dynlib.Library, names []string) []string {
	var missing []string
	for _, name := range names {
		if lib.Symbol(name) == nil {
			missing = append(missing, name)
		}
	}
	return missing
}
