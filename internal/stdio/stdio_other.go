//go:build !darwin && !freebsd && !linux && !windows

package stdio

import (
	"errors"
	"os"
)

func redirect(Stream, *os.File) error {
	return errors.New("stdio: redirection unsupported on this platform")
}
