package rapidslogger

import (
	"fmt"
	"reflect"
)

// Exported symbol names every backend module must provide.
const (
	SymbolInterfaceVersion = "RapidsLoggerInterfaceVersion"
	SymbolLog              = "RapidsLoggerLog"
	SymbolSetLevel         = "RapidsLoggerSetLevel"
	SymbolFlush            = "RapidsLoggerFlush"
)

// Optional symbols. A backend that omits them still loads; the matching
// facade operations report ErrUnsupportedOperation or fall back to state
// tracked by the facade.
const (
	SymbolFlushOn    = "RapidsLoggerFlushOn"
	SymbolSetPattern = "RapidsLoggerSetPattern"
	SymbolLevel      = "RapidsLoggerLevel"
)

// RequiredSymbols lists the symbols a module must export to be accepted.
var RequiredSymbols = []string{SymbolInterfaceVersion, SymbolLog, SymbolSetLevel, SymbolFlush}

// Entry point signatures. These are aliases so that plain exported functions
// in a backend module satisfy them without sharing a named type.
type (
	VersionFunc    = func() string
	LogFunc        = func(level int32, message string, fields map[string]any)
	SetLevelFunc   = func(level int32)
	FlushFunc      = func()
	SetPatternFunc = func(pattern string)
	LevelFunc      = func() int32
)

// entryPoints holds the bound functions of a loaded backend.
type entryPoints struct {
	version    VersionFunc
	log        LogFunc
	setLevel   SetLevelFunc
	flush      FlushFunc
	flushOn    SetLevelFunc
	setPattern SetPatternFunc
	level      LevelFunc
}

// symbolNames returns the names of every symbol that was bound.
func (e entryPoints) symbolNames() []string {
	names := append([]string(nil), RequiredSymbols...)
	if e.flushOn != nil {
		names = append(names, SymbolFlushOn)
	}
	if e.setPattern != nil {
		names = append(names, SymbolSetPattern)
	}
	if e.level != nil {
		names = append(names, SymbolLevel)
	}
	return names
}

// bindEntryPoints resolves the required and optional symbols of mod.
func bindEntryPoints(mod Module) (entryPoints, error) {
	var (
		ep  entryPoints
		err error
	)
	if ep.version, err = lookupFunc[VersionFunc](mod, SymbolInterfaceVersion); err != nil {
		return ep, err
	}
	if ep.log, err = lookupFunc[LogFunc](mod, SymbolLog); err != nil {
		return ep, err
	}
	if ep.setLevel, err = lookupFunc[SetLevelFunc](mod, SymbolSetLevel); err != nil {
		return ep, err
	}
	if ep.flush, err = lookupFunc[FlushFunc](mod, SymbolFlush); err != nil {
		return ep, err
	}

	ep.flushOn, _ = lookupFunc[SetLevelFunc](mod, SymbolFlushOn)
	ep.setPattern, _ = lookupFunc[SetPatternFunc](mod, SymbolSetPattern)
	ep.level, _ = lookupFunc[LevelFunc](mod, SymbolLevel)
	return ep, nil
}

// lookupFunc resolves name and asserts it to F. Exported function variables
// come back from plugin lookups as *F, so both shapes are accepted.
func lookupFunc[F any](mod Module, name string) (F, error) {
	var zero F

	sym, err := mod.Lookup(name)
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %v", ErrMissingSymbol, name, err)
	}

	var fn F
	switch s := sym.(type) {
	case F:
		fn = s
	case *F:
		if s == nil {
			return zero, fmt.Errorf("%w: %s is a nil pointer", ErrMissingSymbol, name)
		}
		fn = *s
	default:
		return zero, fmt.Errorf("%w: %s has type %T", ErrMissingSymbol, name, sym)
	}

	if rv := reflect.ValueOf(fn); !rv.IsValid() || (rv.Kind() == reflect.Func && rv.IsNil()) {
		return zero, fmt.Errorf("%w: %s is nil", ErrMissingSymbol, name)
	}
	return fn, nil
}
