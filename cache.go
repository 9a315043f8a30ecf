package rapidslogger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrCacheClosed is returned for requests made after the cache was closed.
var ErrCacheClosed = errors.New("handle cache closed")

// HandleCache guarantees at most one load per logical name for the lifetime
// of the cache. The first request for a name runs the locator and loader;
// concurrent requests for the same name block until that attempt resolves
// and then share its outcome. Outcomes, successful or not, are never
// re-probed.
type HandleCache struct {
	locator  Locator
	loader   *Loader
	platform PlatformTag
	logger   StructuredLogger
	events   *eventBus

	// onLoad runs once per successful load, before any waiter sees the
	// backend. Loggers already includes the backend while it runs.
	onLoad func(Logger)

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	closed  bool

	locates      atomic.Int64
	loadAttempts atomic.Int64
	hits         atomic.Int64
}

type cacheEntry struct {
	name     string
	required Version
	ready    chan struct{}

	// Written once before ready is closed. backend is published under the
	// cache mutex so Loggers can see it while onLoad runs.
	backend  *LoadedBackend
	rejected []CandidateFailure
	err      *BackendUnavailableError
}

// CacheStats are cumulative counters for a HandleCache.
type CacheStats struct {
	Locates      int64 `json:"locates"`
	LoadAttempts int64 `json:"loadAttempts"`
	Hits         int64 `json:"hits"`
}

// NewHandleCache creates an empty cache that resolves names with locator
// and loader for the given platform.
func NewHandleCache(locator Locator, loader *Loader, platform PlatformTag, logger StructuredLogger) *HandleCache {
	if logger == nil {
		logger = discardLogger()
	}
	return &HandleCache{
		locator:  locator,
		loader:   loader,
		platform: platform,
		logger:   logger,
		entries:  make(map[string]*cacheEntry),
	}
}

// GetOrLoad returns a Logger for name. On the first request for name the
// backend is located and loaded synchronously; every later request reuses
// that outcome regardless of required. A later request whose required
// version the cached backend does not satisfy gets a *VersionMismatchError
// and a degraded Logger, and the cached entry is left untouched.
//
// The returned Logger is always usable; when err is non-nil it is degraded.
func (c *HandleCache) GetOrLoad(name string, required Version) (Logger, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		err := fmt.Errorf("%w: %q requested after teardown", ErrCacheClosed, name)
		return degradedLogger(name, err, c.logger), err
	}

	e, ok := c.entries[name]
	if !ok {
		e = &cacheEntry{name: name, required: required, ready: make(chan struct{})}
		c.entries[name] = e
		c.order = append(c.order, name)
		c.mu.Unlock()
		c.populate(e)
	} else {
		c.mu.Unlock()
		c.hits.Add(1)
		<-e.ready
	}

	return c.resolve(e, required)
}

func (c *HandleCache) populate(e *cacheEntry) {
	defer close(e.ready)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Backend load panicked", "backend", e.name, "panic", fmt.Sprint(r))
			c.mu.Lock()
			b := e.backend
			e.backend = nil
			c.mu.Unlock()
			if b != nil {
				if err := b.release(); err != nil {
					c.logger.Warn("Failed to release backend", "backend", e.name, "error", err)
				}
			}
			e.err = &BackendUnavailableError{Name: e.name, Required: e.required}
		}
	}()

	c.locates.Add(1)
	candidates := c.locator.Candidates(e.name, c.platform)

	c.loadAttempts.Add(1)
	backend, rejected, err := c.loader.Load(e.name, candidates, e.required)
	e.rejected = rejected
	if err != nil {
		var unavailable *BackendUnavailableError
		if !errors.As(err, &unavailable) {
			unavailable = &BackendUnavailableError{Name: e.name, Required: e.required, Failures: rejected}
		}
		e.err = unavailable
		return
	}

	c.mu.Lock()
	e.backend = backend
	c.mu.Unlock()
	c.runOnLoad(e.name, backend)
}

// runOnLoad calls the load hook. The backend stays loaded if the hook panics.
func (c *HandleCache) runOnLoad(name string, backend *LoadedBackend) {
	if c.onLoad == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Backend load hook panicked", "backend", name, "panic", fmt.Sprint(r))
		}
	}()
	c.onLoad(boundLogger(name, backend, c.logger))
}

func (c *HandleCache) resolve(e *cacheEntry, required Version) (Logger, error) {
	if e.err != nil {
		return degradedLogger(e.name, e.err, c.logger), e.err
	}

	if !e.backend.version.Compatible(required) {
		err := &VersionMismatchError{
			Name:     e.name,
			Path:     e.backend.path,
			Cached:   e.backend.version,
			Required: required,
		}
		c.logger.Warn("Cached backend does not satisfy request",
			"backend", e.name, "cached", e.backend.version.String(), "required", required.String())
		c.events.emit(context.Background(), EventTypeVersionMismatch, VersionMismatchData{
			Name:     e.name,
			Cached:   e.backend.version.String(),
			Required: required.String(),
		})
		return degradedLogger(e.name, err, c.logger), err
	}

	return boundLogger(e.name, e.backend, c.logger), nil
}

// Lookup returns the Logger for an already resolved, successfully loaded
// name without triggering a load.
func (c *HandleCache) Lookup(name string) (Logger, bool) {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok || !isReady(e) || e.backend == nil {
		return Logger{}, false
	}
	return boundLogger(e.name, e.backend, c.logger), true
}

// Loggers returns a bound Logger for every successfully loaded backend, in
// first-request order. A backend whose load hook is still running is
// included.
func (c *HandleCache) Loggers() []Logger {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Logger, 0, len(c.order))
	for _, name := range c.order {
		e := c.entries[name]
		if e.backend != nil && !e.backend.released.Load() {
			out = append(out, boundLogger(e.name, e.backend, c.logger))
		}
	}
	return out
}

// Stats returns the cache counters.
func (c *HandleCache) Stats() CacheStats {
	return CacheStats{
		Locates:      c.locates.Load(),
		LoadAttempts: c.loadAttempts.Load(),
		Hits:         c.hits.Load(),
	}
}

// Close flushes and releases every loaded backend. Loggers bound to a
// released backend become silent, and later requests fail with
// ErrCacheClosed. Close waits for in-flight loads to finish.
func (c *HandleCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entries := make([]*cacheEntry, 0, len(c.order))
	for _, name := range c.order {
		entries = append(entries, c.entries[name])
	}
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		<-e.ready
		if e.backend == nil {
			continue
		}
		boundLogger(e.name, e.backend, c.logger).Flush()
		if err := e.backend.release(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release %s: %w", e.name, err))
		}
	}
	return errors.Join(errs...)
}

func isReady(e *cacheEntry) bool {
	select {
	case <-e.ready:
		return true
	default:
		return false
	}
}
