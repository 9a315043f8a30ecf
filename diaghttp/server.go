package diaghttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	rapidslogger "github.com/ttnghia/rapids-logger"
)

// ShutdownTimeout bounds graceful shutdown in Serve.
const ShutdownTimeout = 5 * time.Second

// Serve listens on addr and serves handler until ctx is cancelled, then
// shuts down gracefully. ready, when non-nil, receives the bound address
// once the listener is open.
func Serve(ctx context.Context, addr string, handler http.Handler, logger rapidslogger.StructuredLogger, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if logger != nil {
		logger.Info("Starting diagnostics server", "address", ln.Addr().String())
	}
	if ready != nil {
		ready(ln.Addr())
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("diagnostics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down diagnostics server: %w", err)
	}
	if logger != nil {
		logger.Info("Diagnostics server stopped")
	}
	return nil
}
