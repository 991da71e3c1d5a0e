package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Template returns the commented host.toml written by "corehost config init".
func Template() string {
	return hostTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config dir: %w", err)
	}
	return os.WriteFile(path, []byte(hostTemplate), 0o600)
}

const hostTemplate = `# corehost host settings
log_level = "info"

# home = "/opt/corehost"

# Load every library in extensions_dir (default <home>/extensions) at startup.
extensions = true
# extensions_dir = ""

# Admin API; empty disables it.
admin_addr = ""
cors_origins = ["http://localhost:3000"]

# Host programs probed at startup.
features = ["python3", "curl", "clear"]

# Default argument groups, placed in front of -cpu/-gpu/-mem pairs.
[cpu]
# file = "/path/to/cpu"
args = []

[gpu]
# file = "/path/to/gpu"
args = []

[memory]
# file = "/path/to/memory"
args = []
`
