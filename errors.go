package rapidslogger

import (
	"errors"
	"fmt"
	"strings"
)

// Loader errors
var (
	// ErrMalformedVersion is returned when a version string cannot be parsed
	// into a MAJOR.MINOR.PATCH triple. It is fatal to the call that supplied it.
	ErrMalformedVersion = errors.New("malformed version")

	// ErrNotFound classifies a candidate that could not be opened or does not
	// export the required symbol set.
	ErrNotFound = errors.New("backend candidate not found")

	// ErrIncompatibleVersion classifies a candidate that opened and exported
	// the required symbols but reported an incompatible interface version.
	ErrIncompatibleVersion = errors.New("backend candidate has incompatible version")

	// ErrBackendUnavailable is returned when no candidate for a logical name
	// could be loaded.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrVersionMismatch is returned when a request's required version
	// conflicts with an already cached backend.
	ErrVersionMismatch = errors.New("cached backend version mismatch")

	ErrMissingSymbol             = errors.New("required symbol missing")
	ErrDynamicLoadingUnsupported = errors.New("dynamic loading not supported on this platform")
	ErrModuleNotRegistered       = errors.New("no module registered at path")
	ErrUnknownPlatform           = errors.New("unknown platform tag")
)

// Facade and runtime errors
var (
	ErrUnsupportedOperation = errors.New("operation not supported by backend")
	ErrBackendReleased      = errors.New("backend released")
	ErrInvalidLevel         = errors.New("invalid logging level")
	ErrRuntimeStarted       = errors.New("runtime already started")
	ErrRuntimeClosed        = errors.New("runtime closed")
	ErrNilConfig            = errors.New("config is nil")
)

// CandidateFailure records why a single candidate was rejected by the loader.
// Kind is ErrNotFound or ErrIncompatibleVersion.
type CandidateFailure struct {
	Candidate LibraryCandidate
	Kind      error
	Reason    error
}

func (f CandidateFailure) Error() string {
	return fmt.Sprintf("%s: %v: %v", f.Candidate.ResolvedPath, f.Kind, f.Reason)
}

// Unwrap exposes both the failure kind and the underlying cause to errors.Is.
func (f CandidateFailure) Unwrap() []error {
	return []error{f.Kind, f.Reason}
}

// BackendUnavailableError is the terminal outcome for a logical name when no
// candidate loaded. Failures holds one entry per candidate, in candidate order.
type BackendUnavailableError struct {
	Name     string
	Required Version
	Failures []CandidateFailure
}

func (e *BackendUnavailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v: %q (requires %s): %d candidate(s) rejected", ErrBackendUnavailable, e.Name, e.Required, len(e.Failures))
	for i, f := range e.Failures {
		fmt.Fprintf(&b, "\n  [%d] %s", i+1, f.Error())
	}
	return b.String()
}

func (e *BackendUnavailableError) Unwrap() error {
	return ErrBackendUnavailable
}

// VersionMismatchError is returned to a request whose required version is not
// satisfied by the backend already cached for that name. The cache entry is
// left intact.
type VersionMismatchError struct {
	Name     string
	Path     string
	Cached   Version
	Required Version
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%v: %q loaded from %s reports %s, request requires %s",
		ErrVersionMismatch, e.Name, e.Path, e.Cached, e.Required)
}

func (e *VersionMismatchError) Unwrap() error {
	return ErrVersionMismatch
}
