package rapidslogger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// FlushScheduler periodically flushes every backend loaded by a cache.
// Schedules use the standard cron syntax plus descriptors such as
// "@every 5s" or "@hourly".
type FlushScheduler struct {
	spec     string
	schedule cron.Schedule
	cache    *HandleCache
	logger   StructuredLogger

	mu      sync.Mutex
	cron    *cron.Cron
	started bool

	runs atomic.Int64
}

// NewFlushScheduler validates spec and creates a stopped scheduler.
func NewFlushScheduler(spec string, cache *HandleCache, logger StructuredLogger) (*FlushScheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid flush schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &FlushScheduler{spec: spec, schedule: schedule, cache: cache, logger: logger}, nil
}

// Start begins flushing on schedule. Starting twice is a no-op.
func (s *FlushScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting flush scheduler", "schedule", s.spec)
	s.cron = cron.New()
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.FlushAll(ctx) }))
	s.cron.Start()
	s.started = true
	return nil
}

// Stop halts the schedule and waits for a running flush to finish or ctx to
// expire.
func (s *FlushScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false

	s.logger.Info("Stopping flush scheduler")
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush scheduler stop: %w", ctx.Err())
	}
}

// FlushAll flushes every live backend once and returns the names flushed.
func (s *FlushScheduler) FlushAll(ctx context.Context) []string {
	s.runs.Add(1)

	loggers := s.cache.Loggers()
	names := make([]string, 0, len(loggers))
	for _, l := range loggers {
		l.Flush()
		names = append(names, l.Name())
	}
	if len(names) == 0 {
		return names
	}

	s.logger.Debug("Flushed backends", "count", len(names))
	s.cache.events.emit(ctx, EventTypeBackendFlushed, BackendFlushedData{Names: names})
	return names
}

// Runs returns how many flush passes have run.
func (s *FlushScheduler) Runs() int64 {
	return s.runs.Load()
}
