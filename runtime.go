package rapidslogger

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Runtime owns the handle cache and everything maintaining it. Construction
// and teardown are explicit: create one per process with NewRuntime and
// call Stop when the process shuts down.
//
//	rt, err := rapidslogger.NewRuntime(cfg, rapidslogger.WithLogger(slog.Default()))
//	if err != nil {
//		return err
//	}
//	defer rt.Stop(context.Background())
//
//	log, err := rt.LoadLibrary("core-logger", "2.3.0")
//	if err != nil {
//		slog.Warn("logging degraded", "error", err)
//	}
//	log.Info("started")
type Runtime struct {
	cfg      *Config
	logger   StructuredLogger
	opener   Opener
	locator  Locator
	platform PlatformTag
	pending  []pendingObserver

	events *eventBus
	loader *Loader
	cache  *HandleCache

	// levelsGen counts level changes so a load racing a change can
	// reapply.
	levelsMu     sync.RWMutex
	levelsGen    uint64
	defaultLevel Level
	hasDefault   bool
	flushLevel   Level
	hasFlush     bool

	lifecycleMu sync.Mutex
	started     bool
	closed      bool
	scheduler   *FlushScheduler
	watcher     *LevelWatcher
}

// NewRuntime builds a runtime from cfg. A nil cfg uses DefaultConfig. cfg
// is validated; unset dependencies default to the native opener, a
// SearchPathLocator over cfg and the host platform.
func NewRuntime(cfg *Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	def, hasDef, flush, hasFlush, err := cfg.Levels()
	if err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:          cfg,
		platform:     HostPlatform(),
		defaultLevel: def,
		hasDefault:   hasDef,
		flushLevel:   flush,
		hasFlush:     hasFlush,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("failed to apply runtime option: %w", err)
		}
	}
	if r.logger == nil {
		r.logger = discardLogger()
	}
	if r.opener == nil {
		r.opener = NewNativeOpener()
	}
	if r.locator == nil {
		r.locator = NewSearchPathLocator(cfg.LocatorConfig())
	}

	r.events = newEventBus(r.logger)
	for _, p := range r.pending {
		r.events.register(p.observer, p.eventTypes...)
	}
	r.pending = nil

	r.loader = NewLoader(r.opener, r.logger)
	r.loader.events = r.events
	r.cache = NewHandleCache(r.locator, r.loader, r.platform, r.logger)
	r.cache.events = r.events
	r.cache.onLoad = r.applyLevels
	return r, nil
}

// LoadLibrary returns a Logger for the backend called name whose interface
// version is compatible with requiredVersion. The Logger is always usable:
// when err is non-nil it is degraded and its Err method returns err.
//
// A malformed requiredVersion fails the call before anything is probed.
func (r *Runtime) LoadLibrary(name, requiredVersion string) (Logger, error) {
	required, err := ParseVersion(requiredVersion)
	if err != nil {
		return degradedLogger(name, err, r.logger), err
	}

	r.lifecycleMu.Lock()
	closed := r.closed
	r.lifecycleMu.Unlock()
	if closed {
		err := fmt.Errorf("%w: %q requested after teardown", ErrRuntimeClosed, name)
		return degradedLogger(name, err, r.logger), err
	}

	return r.cache.GetOrLoad(name, required)
}

// Candidates lists the paths LoadLibrary would try for name, in order.
func (r *Runtime) Candidates(name string) []LibraryCandidate {
	return r.locator.Candidates(name, r.platform)
}

// Cache returns the runtime's handle cache.
func (r *Runtime) Cache() *HandleCache { return r.cache }

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() *Config { return r.cfg }

// Platform returns the platform used for library file names.
func (r *Runtime) Platform() PlatformTag { return r.platform }

// RegisterObserver subscribes observer to the given event types, or to all
// events when none are given. Registering the same ObserverID again
// replaces the earlier registration.
func (r *Runtime) RegisterObserver(observer Observer, eventTypes ...string) {
	r.events.register(observer, eventTypes...)
}

// UnregisterObserver removes observer.
func (r *Runtime) UnregisterObserver(observer Observer) {
	r.events.unregister(observer)
}

// SetDefaultLevel applies level to every loaded backend and to backends
// loaded later.
func (r *Runtime) SetDefaultLevel(ctx context.Context, level Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, int32(level))
	}
	r.levelsMu.Lock()
	r.defaultLevel, r.hasDefault = level, true
	r.levelsGen++
	r.levelsMu.Unlock()

	var errs []error
	for _, l := range r.cache.Loggers() {
		if err := l.SetMinimumLevel(level); err != nil {
			errs = append(errs, err)
			continue
		}
		r.logger.Debug("Backend level changed", "backend", l.Name(), "level", level.String())
		r.events.emit(ctx, EventTypeLevelChanged, LevelChangedData{Name: l.Name(), Level: level.String()})
	}
	return errors.Join(errs...)
}

// FlushAll flushes every loaded backend once.
func (r *Runtime) FlushAll(ctx context.Context) []string {
	r.lifecycleMu.Lock()
	s := r.scheduler
	r.lifecycleMu.Unlock()
	if s == nil {
		s = &FlushScheduler{cache: r.cache, logger: r.logger}
	}
	return s.FlushAll(ctx)
}

// Start launches periodic flushing and config watching when configured.
func (r *Runtime) Start(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	switch {
	case r.closed:
		return ErrRuntimeClosed
	case r.started:
		return ErrRuntimeStarted
	}

	if r.cfg.FlushSchedule != "" {
		s, err := NewFlushScheduler(r.cfg.FlushSchedule, r.cache, r.logger)
		if err != nil {
			return err
		}
		if err := s.Start(ctx); err != nil {
			return err
		}
		r.scheduler = s
	}

	if r.cfg.WatchConfig {
		w, err := NewLevelWatcher(r.cfg.ConfigFile, r.applyConfig, r.logger)
		if err == nil {
			w.events = r.events
			err = w.WatchKey(r.cfg.ConfigKey)
		}
		if err == nil {
			err = w.Start(ctx)
		}
		if err != nil {
			if r.scheduler != nil {
				_ = r.scheduler.Stop(ctx)
				r.scheduler = nil
			}
			return err
		}
		r.watcher = w
	}

	r.started = true
	r.logger.Info("Runtime started", "platform", r.platform.String())
	return nil
}

// Stop halts background work, then flushes and releases every loaded
// backend. Loggers handed out earlier become silent. Stop is idempotent and
// may be called without Start.
func (r *Runtime) Stop(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if r.scheduler != nil {
		errs = append(errs, r.scheduler.Stop(ctx))
		r.scheduler = nil
	}
	if r.watcher != nil {
		errs = append(errs, r.watcher.Stop(ctx))
		r.watcher = nil
	}
	errs = append(errs, r.cache.Close())
	r.started = false

	r.logger.Info("Runtime stopped")
	return errors.Join(errs...)
}

// applyLevels runs once for each newly loaded backend. The cache already
// lists l, so a change stored after the last generation check reaches it
// through SetDefaultLevel; a change stored before it is applied here.
func (r *Runtime) applyLevels(l Logger) {
	applied := r.applyLevelsOnce(l)
	for {
		r.levelsMu.RLock()
		gen := r.levelsGen
		r.levelsMu.RUnlock()
		if gen == applied {
			return
		}
		applied = r.applyLevelsOnce(l)
	}
}

func (r *Runtime) applyLevelsOnce(l Logger) uint64 {
	r.levelsMu.RLock()
	gen := r.levelsGen
	def, hasDef := r.defaultLevel, r.hasDefault
	flush, hasFlush := r.flushLevel, r.hasFlush
	r.levelsMu.RUnlock()

	if hasDef {
		if err := l.SetMinimumLevel(def); err != nil {
			r.logger.Warn("Failed to apply default level", "backend", l.Name(), "error", err)
		}
	}
	if hasFlush {
		if err := l.FlushOn(flush); err != nil {
			r.logger.Warn("Failed to apply flush level", "backend", l.Name(), "error", err)
		}
	}
	return gen
}

// applyConfig applies levels from a reloaded config file.
func (r *Runtime) applyConfig(ctx context.Context, cfg *Config) {
	def, hasDef, flush, hasFlush, err := cfg.Levels()
	if err != nil {
		r.logger.Warn("Ignoring reloaded levels", "error", err)
		return
	}

	if hasFlush {
		r.levelsMu.Lock()
		r.flushLevel, r.hasFlush = flush, true
		r.levelsGen++
		r.levelsMu.Unlock()
		for _, l := range r.cache.Loggers() {
			if err := l.FlushOn(flush); err != nil {
				r.logger.Warn("Failed to apply flush level", "backend", l.Name(), "error", err)
			}
		}
	}
	if hasDef {
		if err := r.SetDefaultLevel(ctx, def); err != nil {
			r.logger.Warn("Failed to apply default level", "error", err)
		}
	}
}
