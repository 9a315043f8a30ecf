package rapidslogger

import (
	"errors"
	"fmt"
)

// Fields are structured key-value pairs attached to a record.
type Fields map[string]any

type outcome uint8

const (
	outcomeDegraded outcome = iota
	outcomeBound
)

// Logger is the facade handed to every caller. It is a small value that can
// be copied freely; all copies refer to the same cached backend, which none
// of them owns.
//
// A Logger is either bound to a loaded backend or degraded. In degraded mode
// Emit and Flush do nothing and configuration calls return the reason the
// backend is unavailable. Logging never fails the host.
//
// The zero Logger is degraded.
type Logger struct {
	name    string
	state   outcome
	backend *LoadedBackend
	reason  error
	diag    StructuredLogger
}

func boundLogger(name string, backend *LoadedBackend, diag StructuredLogger) Logger {
	return Logger{name: name, state: outcomeBound, backend: backend, diag: diag}
}

func degradedLogger(name string, reason error, diag StructuredLogger) Logger {
	return Logger{name: name, state: outcomeDegraded, reason: reason, diag: diag}
}

// Name returns the logical backend name the logger was requested for.
func (l Logger) Name() string { return l.name }

// Available reports whether records are forwarded to a live backend.
func (l Logger) Available() bool {
	return l.state == outcomeBound && !l.backend.released.Load()
}

// Err returns why the logger is degraded, or nil when it is bound. The error
// is a *BackendUnavailableError or a *VersionMismatchError, or it wraps
// ErrMalformedVersion, ErrRuntimeClosed or ErrCacheClosed. Configuration
// calls on a degraded logger wrap any other reason in ErrBackendUnavailable.
func (l Logger) Err() error {
	switch l.state {
	case outcomeBound:
		if l.backend.released.Load() {
			return fmt.Errorf("%w: %s", ErrBackendReleased, l.name)
		}
		return nil
	default:
		return l.degradedReason()
	}
}

// Version returns the interface version reported by the bound backend.
func (l Logger) Version() (Version, bool) {
	if l.state != outcomeBound {
		return Version{}, false
	}
	return l.backend.version, true
}

// Path returns the path the bound backend was loaded from.
func (l Logger) Path() string {
	if l.state != outcomeBound {
		return ""
	}
	return l.backend.path
}

// Emit forwards a record to the backend when its level passes the minimum
// level. Records at or above the flush level are flushed immediately.
func (l Logger) Emit(level Level, message string, fields Fields) {
	switch l.state {
	case outcomeBound:
		if !l.ShouldLog(level) {
			return
		}
		b := l.backend
		_ = l.invoke("emit", func() { b.entry.log(int32(level), message, fields) })
		if b.entry.flushOn == nil && level >= Level(b.flushLevel.Load()) {
			_ = l.invoke("flush", b.entry.flush)
		}
	case outcomeDegraded:
	}
}

// Logf formats a message printf-style and emits it without fields.
func (l Logger) Logf(level Level, format string, args ...any) {
	if !l.ShouldLog(level) {
		return
	}
	l.Emit(level, fmt.Sprintf(format, args...), nil)
}

func (l Logger) Trace(format string, args ...any)    { l.Logf(LevelTrace, format, args...) }
func (l Logger) Debug(format string, args ...any)    { l.Logf(LevelDebug, format, args...) }
func (l Logger) Info(format string, args ...any)     { l.Logf(LevelInfo, format, args...) }
func (l Logger) Warn(format string, args ...any)     { l.Logf(LevelWarn, format, args...) }
func (l Logger) Error(format string, args ...any)    { l.Logf(LevelError, format, args...) }
func (l Logger) Critical(format string, args ...any) { l.Logf(LevelCritical, format, args...) }

// ShouldLog reports whether a record at level would be forwarded.
func (l Logger) ShouldLog(level Level) bool {
	if !l.Available() || !level.Valid() || level == LevelOff {
		return false
	}
	return level >= Level(l.backend.level.Load())
}

// MinimumLevel returns the current minimum level. Degraded loggers report
// LevelOff.
func (l Logger) MinimumLevel() Level {
	if l.state != outcomeBound {
		return LevelOff
	}
	return Level(l.backend.level.Load())
}

// SetMinimumLevel changes the backend's minimum level. Every Logger bound to
// the same backend observes the change.
func (l Logger) SetMinimumLevel(level Level) error {
	b, err := l.live()
	if err != nil {
		return err
	}
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int32(level))
	}
	if err := l.invoke("set level", func() { b.entry.setLevel(int32(level)) }); err != nil {
		return err
	}
	b.level.Store(int32(level))
	return nil
}

// WithLevel sets the minimum level and returns a function restoring the
// previous one.
//
//	restore, err := log.WithLevel(rapidslogger.LevelDebug)
//	if err == nil {
//		defer restore()
//	}
func (l Logger) WithLevel(level Level) (restore func(), err error) {
	prev := l.MinimumLevel()
	if err := l.SetMinimumLevel(level); err != nil {
		return func() {}, err
	}
	return func() { _ = l.SetMinimumLevel(prev) }, nil
}

// Flush asks the backend to flush buffered records.
func (l Logger) Flush() {
	switch l.state {
	case outcomeBound:
		if !l.Available() {
			return
		}
		_ = l.invoke("flush", l.backend.entry.flush)
	case outcomeDegraded:
	}
}

// FlushOn makes records at or above level trigger a flush.
func (l Logger) FlushOn(level Level) error {
	b, err := l.live()
	if err != nil {
		return err
	}
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int32(level))
	}
	if b.entry.flushOn != nil {
		if err := l.invoke("flush on", func() { b.entry.flushOn(int32(level)) }); err != nil {
			return err
		}
	}
	b.flushLevel.Store(int32(level))
	return nil
}

// FlushLevel returns the level at or above which records trigger a flush.
func (l Logger) FlushLevel() Level {
	if l.state != outcomeBound {
		return LevelOff
	}
	return Level(l.backend.flushLevel.Load())
}

// SetPattern forwards a formatting pattern to backends that support one.
func (l Logger) SetPattern(pattern string) error {
	b, err := l.live()
	if err != nil {
		return err
	}
	if b.entry.setPattern == nil {
		return fmt.Errorf("%w: %s does not export %s", ErrUnsupportedOperation, b.path, SymbolSetPattern)
	}
	return l.invoke("set pattern", func() { b.entry.setPattern(pattern) })
}

func (l Logger) live() (*LoadedBackend, error) {
	switch l.state {
	case outcomeBound:
		if l.backend.released.Load() {
			return nil, fmt.Errorf("%w: %s", ErrBackendReleased, l.name)
		}
		return l.backend, nil
	default:
		return nil, l.unavailableReason()
	}
}

// unavailableReason is degradedReason for configuration calls: it always
// wraps ErrBackendUnavailable or ErrVersionMismatch.
func (l Logger) unavailableReason() error {
	reason := l.degradedReason()
	if errors.Is(reason, ErrBackendUnavailable) || errors.Is(reason, ErrVersionMismatch) {
		return reason
	}
	return fmt.Errorf("%w: %q: %w", ErrBackendUnavailable, l.name, reason)
}

func (l Logger) degradedReason() error {
	if l.reason != nil {
		return l.reason
	}
	return fmt.Errorf("%w: %q", ErrBackendUnavailable, l.name)
}

// invoke calls into the backend, converting a panic into an error so a
// faulty backend cannot take the host down.
func (l Logger) invoke(op string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend %s panicked during %s: %v", l.name, op, r)
			if l.diag != nil {
				l.diag.Error("Backend call panicked", "backend", l.name, "operation", op, "panic", fmt.Sprint(r))
			}
		}
	}()
	fn()
	return nil
}
