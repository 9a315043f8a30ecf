package rapidslogger

import "log/slog"

// StructuredLogger is the structured logger the runtime uses for its own diagnostics
// (candidate rejections, cache activity, scheduler and watcher errors). It is
// not the backend being loaded.
//
// Arguments are key-value pairs:
//
//	logger.Debug("Candidate rejected", "backend", name, "path", path, "error", err)
//
// *slog.Logger satisfies this interface directly.
type StructuredLogger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

func discardLogger() StructuredLogger {
	return slog.New(slog.DiscardHandler)
}
