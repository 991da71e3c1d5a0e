package home

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const (
	EnvHome    = "COREHOST_HOME"
	DirName    = ".corehost"
	HeaderName = "module.h"
	BinaryName = "corehost"
)

var ErrNoHome = errors.New("home: cannot determine user home directory")

//go:embed assets/module.h
var moduleHeader []byte

// Folders are the relative directories every home must contain.
var Folders = []string{
	"lib", "lib/runtime", "lib/static", "lib/sys",
	"bin", "bin/vm", "bin/modules", "bin/etc",
	"dev", "dev/tools", "dev/bin",
	"include", "include/corehost",
	"vm",
	"settings",
	"extensions",
}

// Home is a resolved host home directory.
type Home struct {
	Root string
}

// Resolve returns override when set, else $COREHOST_HOME, else
// <user home>/.corehost.
func Resolve(override string) (Home, error) {
	root := override
	if root == "" {
		root = os.Getenv(EnvHome)
	}
	if root == "" {
		userHome, err := os.UserHomeDir()
		if err != nil || userHome == "" {
			return Home{}, ErrNoHome
		}
		root = filepath.Join(userHome, DirName)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Home{}, fmt.Errorf("home: resolve %s: %w", root, err)
	}
	return Home{Root: abs}, nil
}

func (h Home) Path(rel ...string) string {
	return filepath.Join(append([]string{h.Root}, rel...)...)
}

func (h Home) Settings() string   { return h.Path("settings") }
func (h Home) Extensions() string { return h.Path("extensions") }
func (h Home) Modules() string    { return h.Path("bin", "modules") }
func (h Home) Include() string    { return h.Path("include", "corehost") }

// Ensure bootstraps a missing home: creates every folder, copies executable
// into bin/ and installs the module header. An existing home is untouched.
// It reports whether a bootstrap happened.
func (h Home) Ensure(executable string) (bool, error) {
	if _, err := os.Stat(h.Root); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("home: stat %s: %w", h.Root, err)
	}

	if err := os.MkdirAll(h.Root, 0o755); err != nil {
		return false, fmt.Errorf("home: create %s: %w", h.Root, err)
	}
	if _, err := h.CheckAndFix(); err != nil {
		return true, err
	}
	if executable != "" {
		if err := copyFile(executable, h.Path("bin", BinaryName), 0o755); err != nil {
			log.Warn().Err(err).Str("from", executable).Msg("home.Home.Ensure executable copy failed")
		}
	}
	if err := h.InstallHeader(); err != nil {
		return true, err
	}
	log.Info().Str("home", h.Root).Msg("home.Home.Ensure bootstrapped")
	return true, nil
}

// CheckAndFix recreates missing folders and returns how many it created.
func (h Home) CheckAndFix() (int, error) {
	created := 0
	for _, rel := range Folders {
		dir := h.Path(filepath.FromSlash(rel))
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return created, fmt.Errorf("home: create %s: %w", dir, err)
		}
		created++
	}
	log.Info().Int("created", created).Msg("home.Home.CheckAndFix")
	return created, nil
}

// InstallHeader writes the module ABI header into include/corehost.
func (h Home) InstallHeader() error {
	dst := filepath.Join(h.Include(), HeaderName)
	if err := os.MkdirAll(h.Include(), 0o755); err != nil {
		return fmt.Errorf("home: create %s: %w", h.Include(), err)
	}
	if err := os.WriteFile(dst, moduleHeader, 0o644); err != nil {
		return fmt.Errorf("home: write %s: %w", dst, err)
	}
	return nil
}

// ModuleHeader returns the embedded module ABI header.
func ModuleHeader() []byte {
	return append([]byte(nil), moduleHeader...)
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
