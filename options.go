package rapidslogger

import "errors"

// Option configures a Runtime during NewRuntime.
type Option func(*Runtime) error

// ErrNilOption is returned when an option is given a nil dependency.
var ErrNilOption = errors.New("option value is nil")

// WithLogger sets the logger the runtime uses for its own diagnostics.
// *slog.Logger satisfies StructuredLogger.
func WithLogger(logger StructuredLogger) Option {
	return func(r *Runtime) error {
		if logger == nil {
			return ErrNilOption
		}
		r.logger = logger
		return nil
	}
}

// WithOpener replaces the native module opener, e.g. with a StaticOpener.
func WithOpener(opener Opener) Option {
	return func(r *Runtime) error {
		if opener == nil {
			return ErrNilOption
		}
		r.opener = opener
		return nil
	}
}

// WithLocator replaces the search path locator built from the config.
func WithLocator(locator Locator) Option {
	return func(r *Runtime) error {
		if locator == nil {
			return ErrNilOption
		}
		r.locator = locator
		return nil
	}
}

// WithPlatform overrides the host platform used for library file names.
func WithPlatform(platform PlatformTag) Option {
	return func(r *Runtime) error {
		r.platform = platform
		return nil
	}
}

// WithObserver registers an observer before any backend is loaded. With no
// event types it receives every event.
func WithObserver(observer Observer, eventTypes ...string) Option {
	return func(r *Runtime) error {
		if observer == nil {
			return ErrNilOption
		}
		r.pending = append(r.pending, pendingObserver{observer: observer, eventTypes: eventTypes})
		return nil
	}
}

type pendingObserver struct {
	observer   Observer
	eventTypes []string
}
