package rapidslogger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"
)

// Static errors for BDD step failures
var (
	errNoLoadAttempted     = errors.New("no load was attempted")
	errUnexpectedLoadError = errors.New("unexpected load error")
	errExpectedLoadFailure = errors.New("expected the load to fail")
	errLoggerNotBound      = errors.New("logger is not bound")
	errLoggerNotDegraded   = errors.New("logger is not degraded")
	errWrongPath           = errors.New("logger bound to the wrong path")
	errWrongCount          = errors.New("unexpected count")
	errPathOpened          = errors.New("path was opened")
)

// loadingBDDContext holds the state of one backend loading scenario.
type loadingBDDContext struct {
	opener  *StaticOpener
	paths   []string
	runtime *Runtime
	backend *recordingBackend

	mu     sync.Mutex
	opened []string

	logger  Logger
	err     error
	loaded  bool
	results []Logger
}

func (c *loadingBDDContext) reset() {
	if c.runtime != nil {
		_ = c.runtime.Stop(context.Background())
	}
	*c = loadingBDDContext{opener: NewStaticOpener()}
}

func (c *loadingBDDContext) openedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.opened...)
}

func (c *loadingBDDContext) ensureRuntime() error {
	if c.runtime != nil {
		return nil
	}
	opener := OpenerFunc(func(path string) (Module, error) {
		c.mu.Lock()
		c.opened = append(c.opened, path)
		c.mu.Unlock()
		return c.opener.Open(path)
	})
	rt, err := NewRuntime(&Config{},
		WithOpener(opener),
		WithLocator(fixedLocator(c.paths)),
		WithPlatform(PosixSharedObject),
	)
	if err != nil {
		return err
	}
	c.runtime = rt
	return nil
}

func (c *loadingBDDContext) aRuntimeWithCandidates(list string) error {
	for _, p := range strings.Split(list, ",") {
		c.paths = append(c.paths, strings.TrimSpace(p))
	}
	return nil
}

func (c *loadingBDDContext) aBackendReportingAt(version, path string) error {
	rb := newRecordingBackend(version)
	c.opener.Register(path, rb.Symbols())
	if c.backend == nil {
		c.backend = rb
	}
	return nil
}

func (c *loadingBDDContext) iLoadRequiring(name, version string) error {
	if err := c.ensureRuntime(); err != nil {
		return err
	}
	c.logger, c.err = c.runtime.LoadLibrary(name, version)
	c.loaded = true
	return nil
}

func (c *loadingBDDContext) callersLoadAtTheSameTime(callers int, name, version string) error {
	if err := c.ensureRuntime(); err != nil {
		return err
	}
	c.results = make([]Logger, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			c.results[i], errs[i] = c.runtime.LoadLibrary(name, version)
		}(i)
	}
	close(start)
	wg.Wait()
	c.loaded = true
	return errors.Join(errs...)
}

func (c *loadingBDDContext) theLoggerShouldBeBoundTo(path string) error {
	if !c.loaded {
		return errNoLoadAttempted
	}
	if c.err != nil {
		return fmt.Errorf("%w: %w", errUnexpectedLoadError, c.err)
	}
	if !c.logger.Available() {
		return errLoggerNotBound
	}
	if c.logger.Path() != path {
		return fmt.Errorf("%w: got %s, want %s", errWrongPath, c.logger.Path(), path)
	}
	return nil
}

func (c *loadingBDDContext) everyCallerShouldBeBoundTo(path string) error {
	for i, l := range c.results {
		if !l.Available() || l.Path() != path {
			return fmt.Errorf("%w: caller %d got %q", errWrongPath, i, l.Path())
		}
	}
	return nil
}

func (c *loadingBDDContext) candidatesShouldHaveBeenRejected(n int) error {
	s, ok := c.runtime.Cache().SnapshotOf(c.logger.Name())
	if !ok {
		return errNoLoadAttempted
	}
	if len(s.Rejected) != n {
		return fmt.Errorf("%w: %d rejected, want %d", errWrongCount, len(s.Rejected), n)
	}
	return nil
}

func (c *loadingBDDContext) shouldNeverHaveBeenOpened(path string) error {
	for _, p := range c.openedPaths() {
		if p == path {
			return fmt.Errorf("%w: %s", errPathOpened, path)
		}
	}
	return nil
}

func (c *loadingBDDContext) theBackendShouldHaveBeenOpened(n int) error {
	if got := len(c.openedPaths()); got != n {
		return fmt.Errorf("%w: opened %d times, want %d", errWrongCount, got, n)
	}
	return nil
}

func (c *loadingBDDContext) theLoadShouldFailAsUnavailableWith(n int) error {
	var unavailable *BackendUnavailableError
	if !errors.As(c.err, &unavailable) {
		return fmt.Errorf("%w: got %v", errExpectedLoadFailure, c.err)
	}
	if len(unavailable.Failures) != n {
		return fmt.Errorf("%w: %d failures, want %d", errWrongCount, len(unavailable.Failures), n)
	}
	return nil
}

func (c *loadingBDDContext) theLoadShouldFailWithAVersionMismatch() error {
	if !errors.Is(c.err, ErrVersionMismatch) {
		return fmt.Errorf("%w: got %v", errExpectedLoadFailure, c.err)
	}
	return nil
}

func (c *loadingBDDContext) theLoadShouldFailWithAMalformedVersion() error {
	if !errors.Is(c.err, ErrMalformedVersion) {
		return fmt.Errorf("%w: got %v", errExpectedLoadFailure, c.err)
	}
	return nil
}

func (c *loadingBDDContext) theLoggerShouldBeDegraded() error {
	if c.logger.Available() || c.logger.Err() == nil {
		return errLoggerNotDegraded
	}
	return nil
}

func (c *loadingBDDContext) iLogAt(message, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	c.logger.Emit(lvl, message, nil)
	return nil
}

func (c *loadingBDDContext) loggingShouldReachNoBackend(message, level string) error {
	if err := c.iLogAt(message, level); err != nil {
		return err
	}
	if c.backend != nil && len(c.backend.Records()) != 0 {
		return fmt.Errorf("%w: %d records", errWrongCount, len(c.backend.Records()))
	}
	return nil
}

func (c *loadingBDDContext) iSetTheMinimumLevelTo(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	return c.logger.SetMinimumLevel(lvl)
}

func (c *loadingBDDContext) theBackendShouldHaveReceived(n int) error {
	if got := len(c.backend.Records()); got != n {
		return fmt.Errorf("%w: %d records, want %d", errWrongCount, got, n)
	}
	return nil
}

// InitializeBackendLoadingScenario registers the backend loading steps.
func InitializeBackendLoadingScenario(ctx *godog.ScenarioContext) {
	c := &loadingBDDContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		c.reset()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		c.reset()
		return ctx, nil
	})

	ctx.Step(`^a runtime with candidates "([^"]*)"$`, c.aRuntimeWithCandidates)
	ctx.Step(`^a backend reporting "([^"]*)" at "([^"]*)"$`, c.aBackendReportingAt)

	ctx.Step(`^I load "([^"]*)" requiring "([^"]*)"$`, c.iLoadRequiring)
	ctx.Step(`^(\d+) callers load "([^"]*)" requiring "([^"]*)" at the same time$`, c.callersLoadAtTheSameTime)
	ctx.Step(`^I set the minimum level to ([A-Z]+)$`, c.iSetTheMinimumLevelTo)
	ctx.Step(`^I log "([^"]*)" at ([A-Z]+)$`, c.iLogAt)

	ctx.Step(`^the logger should be bound to "([^"]*)"$`, c.theLoggerShouldBeBoundTo)
	ctx.Step(`^every caller should be bound to "([^"]*)"$`, c.everyCallerShouldBeBoundTo)
	ctx.Step(`^(\d+) candidates? should have been rejected$`, c.candidatesShouldHaveBeenRejected)
	ctx.Step(`^"([^"]*)" should never have been opened$`, c.shouldNeverHaveBeenOpened)
	ctx.Step(`^the backend should have been opened (\d+) times?$`, c.theBackendShouldHaveBeenOpened)
	ctx.Step(`^the load should fail as unavailable with (\d+) failures$`, c.theLoadShouldFailAsUnavailableWith)
	ctx.Step(`^the load should fail with a version mismatch$`, c.theLoadShouldFailWithAVersionMismatch)
	ctx.Step(`^the load should fail with a malformed version$`, c.theLoadShouldFailWithAMalformedVersion)
	ctx.Step(`^the logger should be degraded$`, c.theLoggerShouldBeDegraded)
	ctx.Step(`^logging "([^"]*)" at ([A-Z]+) should reach no backend$`, c.loggingShouldReachNoBackend)
	ctx.Step(`^the backend should have received (\d+) records?$`, c.theBackendShouldHaveReceived)
}

// TestBackendLoading runs the backend loading feature.
func TestBackendLoading(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeBackendLoadingScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/backend_loading.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
