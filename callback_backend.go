package rapidslogger

import (
	"sync"
	"sync/atomic"
)

// CallbackBackend is an in-process backend that hands every accepted record
// to a callback. Register its Symbols with a StaticOpener to make it
// loadable like any native module.
type CallbackBackend struct {
	version string
	onLog   func(level Level, message string, fields Fields)
	onFlush func()

	level      atomic.Int32
	flushLevel atomic.Int32

	mu      sync.Mutex
	pattern string
}

// NewCallbackBackend creates a backend reporting the given interface
// version. onFlush may be nil.
func NewCallbackBackend(version string, onLog func(Level, string, Fields), onFlush func()) *CallbackBackend {
	b := &CallbackBackend{
		version: version,
		onLog:   onLog,
		onFlush: onFlush,
	}
	b.level.Store(int32(LevelInfo))
	b.flushLevel.Store(int32(LevelOff))
	return b
}

// Pattern returns the last pattern set through the ABI.
func (b *CallbackBackend) Pattern() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pattern
}

// Symbols returns the backend's exported symbol table.
func (b *CallbackBackend) Symbols() Symbols {
	return Symbols{
		SymbolInterfaceVersion: VersionFunc(func() string { return b.version }),
		SymbolLog:              LogFunc(b.log),
		SymbolSetLevel:         SetLevelFunc(func(l int32) { b.level.Store(l) }),
		SymbolFlush:            FlushFunc(b.flush),
		SymbolFlushOn:          SetLevelFunc(func(l int32) { b.flushLevel.Store(l) }),
		SymbolSetPattern: SetPatternFunc(func(p string) {
			b.mu.Lock()
			b.pattern = p
			b.mu.Unlock()
		}),
		SymbolLevel: LevelFunc(b.level.Load),
	}
}

func (b *CallbackBackend) log(level int32, message string, fields map[string]any) {
	if level < b.level.Load() || Level(level) == LevelOff {
		return
	}
	if b.onLog != nil {
		b.onLog(Level(level), message, fields)
	}
	if level >= b.flushLevel.Load() {
		b.flush()
	}
}

func (b *CallbackBackend) flush() {
	if b.onFlush != nil {
		b.onFlush()
	}
}
