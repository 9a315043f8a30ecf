package rapidslogger

// EventSource is the CloudEvents source attribute of every emitted event.
const EventSource = "rapidslogger.runtime"

// Event type constants, in CloudEvents reverse domain notation.
const (
	// Loader events
	EventTypeBackendLoaded      = "com.rapidslogger.backend.loaded"
	EventTypeBackendUnavailable = "com.rapidslogger.backend.unavailable"
	EventTypeCandidateRejected  = "com.rapidslogger.candidate.rejected"

	// Cache events
	EventTypeVersionMismatch = "com.rapidslogger.version.mismatch"

	// Runtime maintenance events
	EventTypeBackendFlushed = "com.rapidslogger.backend.flushed"
	EventTypeLevelChanged   = "com.rapidslogger.level.changed"
	EventTypeConfigChanged  = "com.rapidslogger.config.changed"
)

// BackendLoadedData is the payload of EventTypeBackendLoaded.
type BackendLoadedData struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Version  string   `json:"version"`
	Symbols  []string `json:"symbols"`
	Rejected int      `json:"rejected"`
}

// CandidateRejectedData is the payload of EventTypeCandidateRejected.
type CandidateRejectedData struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// BackendUnavailableData is the payload of EventTypeBackendUnavailable.
type BackendUnavailableData struct {
	Name       string   `json:"name"`
	Required   string   `json:"required"`
	Candidates []string `json:"candidates"`
}

// VersionMismatchData is the payload of EventTypeVersionMismatch.
type VersionMismatchData struct {
	Name     string `json:"name"`
	Cached   string `json:"cached"`
	Required string `json:"required"`
}

// LevelChangedData is the payload of EventTypeLevelChanged.
type LevelChangedData struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// BackendFlushedData is the payload of EventTypeBackendFlushed.
type BackendFlushedData struct {
	Names []string `json:"names"`
}

// ConfigChangedData is the payload of EventTypeConfigChanged.
type ConfigChangedData struct {
	File         string `json:"file"`
	DefaultLevel string `json:"defaultLevel"`
}
