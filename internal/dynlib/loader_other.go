//go:build !darwin && !freebsd && !linux && !windows

package dynlib

type systemLoader struct{}

// System returns a loader that rejects every open on unsupported platforms.
func System() Loader {
	return systemLoader{}
}

func (systemLoader) Open(path string) (Handle, error) {
	return nil, ErrUnsupported
}
