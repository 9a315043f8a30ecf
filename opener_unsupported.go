//go:build !((linux || darwin || freebsd) && cgo)

package rapidslogger

import "fmt"

// NativeOpener rejects every path on platforms without plugin support.
type NativeOpener struct{}

// NewNativeOpener returns the opener for the host platform.
func NewNativeOpener() Opener {
	return NativeOpener{}
}

// Open implements Opener.
func (NativeOpener) Open(path string) (Module, error) {
	return nil, fmt.Errorf("%w: %s", ErrDynamicLoadingUnsupported, path)
}
