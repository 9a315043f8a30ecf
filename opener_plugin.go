//go:build (linux || darwin || freebsd) && cgo

package rapidslogger

import (
	"fmt"
	"plugin"
)

// NativeOpener opens Go plugin shared objects built with
// -buildmode=plugin.
type NativeOpener struct{}

// NewNativeOpener returns the opener for the host platform.
func NewNativeOpener() Opener {
	return NativeOpener{}
}

// Open implements Opener.
func (NativeOpener) Open(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return pluginModule{p: p}, nil
}

type pluginModule struct {
	p *plugin.Plugin
}

func (m pluginModule) Lookup(symbol string) (any, error) {
	sym, err := m.p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingSymbol, symbol)
	}
	return sym, nil
}

// Close is a no-op: the Go runtime never unloads plugins.
func (pluginModule) Close() error {
	return nil
}
