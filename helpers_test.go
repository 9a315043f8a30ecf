package rapidslogger

import (
	"context"
	"fmt"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// logEntry is a diagnostic line captured by testLogger.
type logEntry struct {
	Level string
	Msg   string
	Args  []any
}

// testLogger records diagnostics for assertions.
type testLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *testLogger) record(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Msg: msg, Args: args})
}

func (l *testLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args...) }
func (l *testLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args...) }
func (l *testLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args...) }
func (l *testLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args...) }

func (l *testLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}

// record is one record received by a recordingBackend.
type record struct {
	Level   Level
	Message string
	Fields  Fields
}

// recordingBackend wraps a CallbackBackend and keeps what it receives.
type recordingBackend struct {
	*CallbackBackend

	mu      sync.Mutex
	records []record
	flushes int
}

func newRecordingBackend(version string) *recordingBackend {
	rb := &recordingBackend{}
	rb.CallbackBackend = NewCallbackBackend(version,
		func(level Level, msg string, fields Fields) {
			rb.mu.Lock()
			rb.records = append(rb.records, record{Level: level, Message: msg, Fields: fields})
			rb.mu.Unlock()
		},
		func() {
			rb.mu.Lock()
			rb.flushes++
			rb.mu.Unlock()
		})
	return rb
}

func (rb *recordingBackend) Records() []record {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return append([]record(nil), rb.records...)
}

func (rb *recordingBackend) Flushes() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.flushes
}

// minimalSymbols exports only the required entry points, as plain functions.
func minimalSymbols(version string, onLog func(int32, string)) Symbols {
	return Symbols{
		SymbolInterfaceVersion: func() string { return version },
		SymbolLog: func(level int32, msg string, _ map[string]any) {
			if onLog != nil {
				onLog(level, msg)
			}
		},
		SymbolSetLevel: func(int32) {},
		SymbolFlush:    func() {},
	}
}

// fixedLocator returns the same paths for every name.
type fixedLocator []string

func (f fixedLocator) Candidates(name string, platform PlatformTag) []LibraryCandidate {
	out := make([]LibraryCandidate, len(f))
	for i, p := range f {
		out[i] = LibraryCandidate{LogicalName: name, ResolvedPath: p, Platform: platform}
	}
	return out
}

// eventCollector is an Observer that keeps every event it sees.
type eventCollector struct {
	id     string
	mu     sync.Mutex
	events []cloudevents.Event
}

func newEventCollector(id string) *eventCollector {
	return &eventCollector{id: id}
}

func (c *eventCollector) OnEvent(_ context.Context, event cloudevents.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *eventCollector) ObserverID() string { return c.id }

func (c *eventCollector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type()
	}
	return out
}

func (c *eventCollector) ofType(eventType string) []cloudevents.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []cloudevents.Event
	for _, e := range c.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// newTestRuntime builds a runtime over a StaticOpener and a fixed locator.
func newTestRuntime(cfg *Config, opener *StaticOpener, paths []string, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	base := []Option{
		WithOpener(opener),
		WithLocator(fixedLocator(paths)),
		WithPlatform(PosixSharedObject),
	}
	rt, err := NewRuntime(cfg, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("new test runtime: %w", err)
	}
	return rt, nil
}
