package rapidslogger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// LoadedBackend is a module that opened, exported the required symbols and
// reported a compatible interface version. It is created once per successful
// load and owned by the HandleCache. Apart from the level bookkeeping below
// it is never mutated after construction.
type LoadedBackend struct {
	name    string
	path    string
	version Version
	module  Module
	entry   entryPoints
	symbols []string

	level      atomic.Int32
	flushLevel atomic.Int32
	released   atomic.Bool
}

// Name returns the logical name the backend was loaded for.
func (b *LoadedBackend) Name() string { return b.name }

// Path returns the candidate path the backend was loaded from.
func (b *LoadedBackend) Path() string { return b.path }

// Version returns the interface version the backend reported.
func (b *LoadedBackend) Version() Version { return b.version }

// Symbols returns the names of the bound entry points.
func (b *LoadedBackend) Symbols() []string {
	return append([]string(nil), b.symbols...)
}

// release marks the backend unusable and closes its module. Only the cache
// calls this, at runtime teardown.
func (b *LoadedBackend) release() error {
	if !b.released.CompareAndSwap(false, true) {
		return nil
	}
	return b.module.Close()
}

// Loader tries candidates in order until one validates. It performs no
// caching; see HandleCache.
type Loader struct {
	opener Opener
	logger StructuredLogger
	events *eventBus
}

// NewLoader creates a Loader. A nil logger discards diagnostics.
func NewLoader(opener Opener, logger StructuredLogger) *Loader {
	if logger == nil {
		logger = discardLogger()
	}
	return &Loader{opener: opener, logger: logger}
}

// Load opens each candidate in turn and returns the first backend that
// exports the required symbols and is compatible with required. The
// returned failures describe every candidate rejected before the winner, in
// order. When every candidate is rejected the error is a
// *BackendUnavailableError carrying one failure per candidate.
func (l *Loader) Load(name string, candidates []LibraryCandidate, required Version) (*LoadedBackend, []CandidateFailure, error) {
	failures := make([]CandidateFailure, 0, len(candidates))

	for _, c := range candidates {
		backend, failure := l.tryCandidate(name, c, required)
		if failure == nil {
			l.logger.Info("Backend loaded",
				"backend", name, "path", c.ResolvedPath, "version", backend.version.String(), "rejected", len(failures))
			l.events.emit(context.Background(), EventTypeBackendLoaded, BackendLoadedData{
				Name:     name,
				Path:     c.ResolvedPath,
				Version:  backend.version.String(),
				Symbols:  backend.Symbols(),
				Rejected: len(failures),
			})
			return backend, failures, nil
		}

		l.logger.Debug("Candidate rejected",
			"backend", name, "path", c.ResolvedPath, "kind", failure.Kind.Error(), "error", failure.Reason)
		l.events.emit(context.Background(), EventTypeCandidateRejected, CandidateRejectedData{
			Name:   name,
			Path:   c.ResolvedPath,
			Kind:   failure.Kind.Error(),
			Reason: failure.Reason.Error(),
		})
		failures = append(failures, *failure)
	}

	err := &BackendUnavailableError{Name: name, Required: required, Failures: failures}
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.ResolvedPath
	}
	l.logger.Warn("Backend unavailable", "backend", name, "required", required.String(), "candidates", len(candidates))
	l.events.emit(context.Background(), EventTypeBackendUnavailable, BackendUnavailableData{
		Name:       name,
		Required:   required.String(),
		Candidates: paths,
	})
	return nil, failures, err
}

func (l *Loader) tryCandidate(name string, c LibraryCandidate, required Version) (*LoadedBackend, *CandidateFailure) {
	reject := func(kind, reason error) *CandidateFailure {
		return &CandidateFailure{Candidate: c, Kind: kind, Reason: reason}
	}

	mod, err := l.open(c.ResolvedPath)
	if err != nil {
		return nil, reject(ErrNotFound, err)
	}

	entry, err := bindEntryPoints(mod)
	if err != nil {
		l.closeRejected(name, c, mod)
		return nil, reject(ErrNotFound, err)
	}

	reported, err := reportedVersion(entry)
	if err != nil {
		l.closeRejected(name, c, mod)
		return nil, reject(ErrIncompatibleVersion, err)
	}
	if !reported.Compatible(required) {
		l.closeRejected(name, c, mod)
		return nil, reject(ErrIncompatibleVersion,
			fmt.Errorf("module reports %s, %s or a later %d.x is required", reported, required, required.Major))
	}

	backend := &LoadedBackend{
		name:    name,
		path:    c.ResolvedPath,
		version: reported,
		module:  mod,
		entry:   entry,
		symbols: entry.symbolNames(),
	}
	backend.level.Store(int32(initialLevel(entry)))
	backend.flushLevel.Store(int32(LevelOff))
	return backend, nil
}

// open guards against openers that panic on malformed input.
func (l *Loader) open(path string) (mod Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			mod, err = nil, fmt.Errorf("open panicked: %v", r)
		}
	}()
	return l.opener.Open(path)
}

func (l *Loader) closeRejected(name string, c LibraryCandidate, mod Module) {
	if err := mod.Close(); err != nil {
		l.logger.Warn("Failed to close rejected module", "backend", name, "path", c.ResolvedPath, "error", err)
	}
}

func reportedVersion(entry entryPoints) (v Version, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", SymbolInterfaceVersion, r)
		}
	}()
	v, err = ParseVersion(entry.version())
	if err != nil {
		return Version{}, fmt.Errorf("module reported an unusable version: %w", err)
	}
	return v, nil
}

// initialLevel asks the backend for its level when it exports a query,
// otherwise assumes INFO.
func initialLevel(entry entryPoints) (lvl Level) {
	lvl = LevelInfo
	if entry.level == nil {
		return lvl
	}
	defer func() {
		if recover() != nil {
			lvl = LevelInfo
		}
	}()
	if reported := Level(entry.level()); reported.Valid() {
		lvl = reported
	}
	return lvl
}

// IsCandidateNotFound reports whether a candidate failure means the module
// could not be opened or lacked the required symbols.
func IsCandidateNotFound(f CandidateFailure) bool {
	return errors.Is(f.Kind, ErrNotFound)
}
