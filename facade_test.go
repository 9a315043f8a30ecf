package rapidslogger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadRecording(t *testing.T, version string) (Logger, *recordingBackend) {
	t.Helper()
	rb := newRecordingBackend(version)
	opener := NewStaticOpener()
	opener.Register("/libcore.so", rb.Symbols())
	l, err := newTestCache(opener, "/libcore.so").GetOrLoad("core", MustParseVersion(version))
	require.NoError(t, err)
	return l, rb
}

func TestLoggerEmitForwards(t *testing.T) {
	t.Parallel()

	l, rb := loadRecording(t, "2.3.0")
	l.Emit(LevelWarn, "disk almost full", Fields{"free": 12})
	l.Info("started %d workers", 4)

	recs := rb.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, record{Level: LevelWarn, Message: "disk almost full", Fields: Fields{"free": 12}}, recs[0])
	assert.Equal(t, "started 4 workers", recs[1].Message)
	assert.Equal(t, LevelInfo, recs[1].Level)
}

func TestLoggerFiltersBelowMinimumLevel(t *testing.T) {
	t.Parallel()

	l, rb := loadRecording(t, "1.0.0")
	require.NoError(t, l.SetMinimumLevel(LevelError))

	l.Debug("hidden")
	l.Warn("hidden")
	l.Error("shown")
	l.Critical("shown")
	l.Emit(LevelOff, "never", nil)

	assert.Len(t, rb.Records(), 2)
	assert.True(t, l.ShouldLog(LevelError))
	assert.False(t, l.ShouldLog(LevelWarn))
	assert.False(t, l.ShouldLog(LevelOff))
	assert.False(t, l.ShouldLog(Level(99)))
}

func TestLoggerLevelSharedAcrossCopies(t *testing.T) {
	t.Parallel()

	l, _ := loadRecording(t, "1.0.0")
	copyOf := l

	require.NoError(t, l.SetMinimumLevel(LevelTrace))
	assert.Equal(t, LevelTrace, copyOf.MinimumLevel())
}

func TestLoggerSetMinimumLevelInvalid(t *testing.T) {
	t.Parallel()

	l, _ := loadRecording(t, "1.0.0")
	assert.ErrorIs(t, l.SetMinimumLevel(Level(7)), ErrInvalidLevel)
	assert.Equal(t, LevelInfo, l.MinimumLevel())
}

func TestLoggerWithLevelRestores(t *testing.T) {
	t.Parallel()

	l, rb := loadRecording(t, "1.0.0")
	restore, err := l.WithLevel(LevelTrace)
	require.NoError(t, err)
	l.Trace("scoped")
	restore()
	l.Trace("dropped")

	assert.Equal(t, LevelInfo, l.MinimumLevel())
	require.Len(t, rb.Records(), 1)
	assert.Equal(t, "scoped", rb.Records()[0].Message)
}

func TestLoggerFlushOn(t *testing.T) {
	t.Parallel()

	l, rb := loadRecording(t, "1.0.0")
	assert.Equal(t, LevelOff, l.FlushLevel())

	require.NoError(t, l.FlushOn(LevelError))
	assert.Equal(t, LevelError, l.FlushLevel())

	l.Warn("no flush")
	assert.Equal(t, 0, rb.Flushes())
	l.Error("flush")
	assert.Equal(t, 1, rb.Flushes())

	l.Flush()
	assert.Equal(t, 2, rb.Flushes())
}

func TestLoggerFlushOnWithoutBackendSupport(t *testing.T) {
	t.Parallel()

	var flushes int
	syms := minimalSymbols("1.0.0", nil)
	syms[SymbolFlush] = func() { flushes++ }
	opener := NewStaticOpener()
	opener.Register("/min.so", syms)
	l, err := newTestCache(opener, "/min.so").GetOrLoad("min", MustParseVersion("1.0.0"))
	require.NoError(t, err)

	require.NoError(t, l.FlushOn(LevelWarn))
	l.Info("no flush")
	l.Warn("flush")
	assert.Equal(t, 1, flushes, "the facade flushes for backends without flush-on support")
}

func TestLoggerSetPattern(t *testing.T) {
	t.Parallel()

	l, rb := loadRecording(t, "1.0.0")
	require.NoError(t, l.SetPattern("[%l] %v"))
	assert.Equal(t, "[%l] %v", rb.Pattern())

	opener := NewStaticOpener()
	opener.Register("/min.so", minimalSymbols("1.0.0", nil))
	minimal, err := newTestCache(opener, "/min.so").GetOrLoad("min", MustParseVersion("1.0.0"))
	require.NoError(t, err)
	assert.ErrorIs(t, minimal.SetPattern("%v"), ErrUnsupportedOperation)
}

func TestLoggerBackendPanicIsContained(t *testing.T) {
	t.Parallel()

	syms := minimalSymbols("1.0.0", func(int32, string) { panic("backend bug") })
	syms[SymbolSetLevel] = func(int32) { panic("set level bug") }
	opener := NewStaticOpener()
	opener.Register("/bad.so", syms)

	diag := &testLogger{}
	cache := NewHandleCache(fixedLocator{"/bad.so"}, NewLoader(opener, nil), PosixSharedObject, diag)
	l, err := cache.GetOrLoad("bad", MustParseVersion("1.0.0"))
	require.NoError(t, err)

	assert.NotPanics(t, func() { l.Error("boom") })
	assert.Error(t, l.SetMinimumLevel(LevelDebug))
	assert.Equal(t, LevelInfo, l.MinimumLevel(), "a failed set leaves the level unchanged")
	assert.Contains(t, diag.messages("ERROR"), "Backend call panicked")
}

func TestDegradedLogger(t *testing.T) {
	t.Parallel()

	reason := &BackendUnavailableError{Name: "core", Required: MustParseVersion("2.3.0")}
	l := degradedLogger("core", reason, nil)

	assert.Equal(t, "core", l.Name())
	assert.False(t, l.Available())
	assert.Same(t, reason, l.Err())
	assert.Empty(t, l.Path())
	_, ok := l.Version()
	assert.False(t, ok)
	assert.Equal(t, LevelOff, l.MinimumLevel())
	assert.Equal(t, LevelOff, l.FlushLevel())

	assert.NotPanics(t, func() {
		l.Emit(LevelCritical, "dropped", nil)
		l.Critical("dropped")
		l.Flush()
	})

	err := l.SetMinimumLevel(LevelDebug)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, l.FlushOn(LevelError), ErrBackendUnavailable)
	assert.ErrorIs(t, l.SetPattern("%v"), ErrBackendUnavailable)
	restore, err := l.WithLevel(LevelDebug)
	assert.Error(t, err)
	assert.NotPanics(t, restore)
}

func TestDegradedLoggerConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		reason error
		kind   error
	}{
		{name: "malformed version", reason: fmt.Errorf("%w: %q", ErrMalformedVersion, "2.x"), kind: ErrBackendUnavailable},
		{name: "runtime closed", reason: fmt.Errorf("%w: %q requested after teardown", ErrRuntimeClosed, "core"), kind: ErrBackendUnavailable},
		{name: "cache closed", reason: fmt.Errorf("%w: %q requested after teardown", ErrCacheClosed, "core"), kind: ErrBackendUnavailable},
		{name: "version mismatch", reason: &VersionMismatchError{Name: "core"}, kind: ErrVersionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := degradedLogger("core", tt.reason, nil)
			assert.Same(t, tt.reason, l.Err())

			err := l.SetMinimumLevel(LevelDebug)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.reason)
			assert.ErrorIs(t, l.FlushOn(LevelError), tt.kind)
		})
	}
}

func TestZeroLogger(t *testing.T) {
	t.Parallel()

	var l Logger
	assert.False(t, l.Available())
	assert.ErrorIs(t, l.Err(), ErrBackendUnavailable)
	assert.NotPanics(t, func() { l.Info("nothing") })
	assert.True(t, errors.Is(l.SetMinimumLevel(LevelInfo), ErrBackendUnavailable))
}

func TestLoggerVersionAndPath(t *testing.T) {
	t.Parallel()

	l, _ := loadRecording(t, "2.5.1")
	v, ok := l.Version()
	require.True(t, ok)
	assert.Equal(t, "2.5.1", v.String())
	assert.Equal(t, "/libcore.so", l.Path())
	assert.Equal(t, "core", l.Name())
	assert.NoError(t, l.Err())
}
