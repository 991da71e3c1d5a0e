package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	gotoml "github.com/pelletier/go-toml/v2"
)

// Render encodes cfg as TOML, as printed by "corehost config show".
func Render(cfg HostConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := gotoml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("config render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// CheckStrict decodes path rejecting unknown keys and reports each offending
// key with its position.
func CheckStrict(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	var cfg HostConfig
	dec := gotoml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *gotoml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s\n%s", ErrInvalid, path, strict.String())
		}
		var decErr *gotoml.DecodeError
		if errors.As(err, &decErr) {
			row, col := decErr.Position()
			return fmt.Errorf("%w: %s:%d:%d: %s", ErrInvalid, path, row, col, decErr.Error())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return Validate(cfg)
}
