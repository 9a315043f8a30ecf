package rapidslogger

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Symbols is an in-memory symbol table, keyed by exported symbol name.
type Symbols map[string]any

// StaticOpener serves modules from an in-memory registry of symbol tables.
// It lets a host embed backends in the binary and lets tests exercise the
// loader without real shared libraries.
type StaticOpener struct {
	mu      sync.RWMutex
	modules map[string]Symbols
	failing map[string]error

	opens  atomic.Int64
	closes atomic.Int64
}

// NewStaticOpener creates an empty StaticOpener.
func NewStaticOpener() *StaticOpener {
	return &StaticOpener{
		modules: make(map[string]Symbols),
		failing: make(map[string]error),
	}
}

// Register makes symbols available under path. Registering the same path
// again replaces the previous table.
func (o *StaticOpener) Register(path string, symbols Symbols) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make(Symbols, len(symbols))
	for k, v := range symbols {
		cp[k] = v
	}
	o.modules[path] = cp
	delete(o.failing, path)
}

// RegisterFailure makes opening path fail with err, for example to simulate
// a permission error or a malformed binary.
func (o *StaticOpener) RegisterFailure(path string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failing[path] = err
	delete(o.modules, path)
}

// Open implements Opener.
func (o *StaticOpener) Open(path string) (Module, error) {
	o.opens.Add(1)

	o.mu.RLock()
	defer o.mu.RUnlock()

	if err, ok := o.failing[path]; ok {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	symbols, ok := o.modules[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotRegistered, path)
	}
	return &staticModule{path: path, symbols: symbols, closes: &o.closes}, nil
}

// Opens returns the number of Open calls made so far.
func (o *StaticOpener) Opens() int64 {
	return o.opens.Load()
}

// Closes returns the number of modules closed so far.
func (o *StaticOpener) Closes() int64 {
	return o.closes.Load()
}

type staticModule struct {
	path    string
	symbols Symbols
	closes  *atomic.Int64
}

func (m *staticModule) Lookup(symbol string) (any, error) {
	sym, ok := m.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s not exported by %s", ErrMissingSymbol, symbol, m.path)
	}
	return sym, nil
}

func (m *staticModule) Close() error {
	m.closes.Add(1)
	return nil
}
