// Package stdio redirects the process-level standard streams to files so
// code inside loaded modules writes to (or reads from) them as well.
package stdio

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrUnknownStream = errors.New("stdio: unknown stream")

// Stream names one standard stream.
type Stream string

const (
	Stdin  Stream = "stdin"
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// ParseStream accepts "stdout", "-stdout" and case variants.
func ParseStream(raw string) (Stream, error) {
	s := Stream(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "-"))
	switch s {
	case Stdin, Stdout, Stderr:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStream, raw)
}

// Redirect points stream at path. Output streams are truncated, matching a
// write-mode reopen; stdin is opened read-only. The file must already exist.
func Redirect(stream Stream, path string) error {
	flag := os.O_WRONLY | os.O_TRUNC
	if stream == Stdin {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s file: %w", stream, err)
	}
	defer f.Close()

	if err := redirect(stream, f); err != nil {
		return fmt.Errorf("redirect %s to %s: %w", stream, path, err)
	}
	return nil
}
