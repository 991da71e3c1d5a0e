package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/corehost/internal/logging"
	"github.com/danmuck/corehost/internal/tools"
)

const (
	EnvConfig    = "COREHOST_CONFIG"
	FileName     = "host.toml"
	DefaultAdmin = ""
)

var ErrInvalid = errors.New("config: invalid host config")

// ModuleConfig is a per-role default argument group.
type ModuleConfig struct {
	File string   `toml:"file"`
	Args []string `toml:"args"`
}

// Group returns the module's argument group tokens: the file pair first,
// then args.
func (m ModuleConfig) Group() []string {
	var out []string
	if strings.TrimSpace(m.File) != "" {
		out = append(out, "file", m.File)
	}
	return append(out, m.Args...)
}

// HostConfig is the effective host configuration.
type HostConfig struct {
	LogLevel      string       `toml:"log_level"`
	Home          string       `toml:"home"`
	Extensions    bool         `toml:"extensions"`
	ExtensionsDir string       `toml:"extensions_dir"`
	AdminAddr     string       `toml:"admin_addr"`
	CorsOrigins   []string     `toml:"cors_origins"`
	Features      []string     `toml:"features"`
	CPU           ModuleConfig `toml:"cpu"`
	GPU           ModuleConfig `toml:"gpu"`
	Memory        ModuleConfig `toml:"memory"`
}

// Default returns the configuration used when no file is present.
func Default() HostConfig {
	return HostConfig{
		LogLevel:    "info",
		Extensions:  true,
		AdminAddr:   DefaultAdmin,
		CorsOrigins: []string{"http://localhost:3000"},
		Features:    append([]string(nil), tools.DefaultFeatures...),
	}
}

// Path returns $COREHOST_CONFIG when set, else settings/host.toml under
// homeRoot.
func Path(homeRoot string) string {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	return filepath.Join(homeRoot, "settings", FileName)
}

// LoadHostConfig overlays the keys defined in path onto Default. A missing
// file yields the defaults.
func LoadHostConfig(path string) (HostConfig, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	var raw HostConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return HostConfig{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("home") {
		cfg.Home = strings.TrimSpace(raw.Home)
	}
	if meta.IsDefined("extensions") {
		cfg.Extensions = raw.Extensions
	}
	if meta.IsDefined("extensions_dir") {
		cfg.ExtensionsDir = strings.TrimSpace(raw.ExtensionsDir)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalize(raw.CorsOrigins)
	}
	if meta.IsDefined("features") {
		cfg.Features = normalize(raw.Features)
	}
	for _, mod := range []struct {
		key string
		dst *ModuleConfig
		src ModuleConfig
	}{
		{"cpu", &cfg.CPU, raw.CPU},
		{"gpu", &cfg.GPU, raw.GPU},
		{"memory", &cfg.Memory, raw.Memory},
	} {
		if meta.IsDefined(mod.key, "file") {
			mod.dst.File = strings.TrimSpace(mod.src.File)
		}
		if meta.IsDefined(mod.key, "args") {
			mod.dst.Args = mod.src.Args
		}
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return HostConfig{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	if err := Validate(cfg); err != nil {
		return HostConfig{}, err
	}
	return cfg, nil
}

// Validate checks value-level constraints.
func Validate(cfg HostConfig) error {
	if cfg.LogLevel != "" {
		if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("%w: log_level %q", ErrInvalid, cfg.LogLevel)
		}
	}
	if len(cfg.CPU.Args)%2 != 0 || len(cfg.GPU.Args)%2 != 0 || len(cfg.Memory.Args)%2 != 0 {
		return fmt.Errorf("%w: module args must be key/value pairs", ErrInvalid)
	}
	if cfg.AdminAddr != "" && !strings.Contains(cfg.AdminAddr, ":") {
		return fmt.Errorf("%w: admin_addr %q needs a port", ErrInvalid, cfg.AdminAddr)
	}
	return nil
}

func normalize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
