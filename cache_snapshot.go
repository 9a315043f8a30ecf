package rapidslogger

// Entry states reported by Snapshot.
const (
	EntryLoading     = "loading"
	EntryLoaded      = "loaded"
	EntryUnavailable = "unavailable"
	EntryReleased    = "released"
)

// EntrySnapshot describes one cache entry for diagnostics.
type EntrySnapshot struct {
	Name     string            `json:"name"`
	State    string            `json:"state"`
	Required string            `json:"required"`
	Path     string            `json:"path,omitempty"`
	Version  string            `json:"version,omitempty"`
	Level    string            `json:"level,omitempty"`
	Symbols  []string          `json:"symbols,omitempty"`
	Rejected []FailureSnapshot `json:"rejected,omitempty"`
}

// FailureSnapshot describes one rejected candidate.
type FailureSnapshot struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Snapshot lists every entry in first-request order. Entries still loading
// are reported without details.
func (c *HandleCache) Snapshot() []EntrySnapshot {
	c.mu.Lock()
	entries := make([]*cacheEntry, 0, len(c.order))
	for _, name := range c.order {
		entries = append(entries, c.entries[name])
	}
	c.mu.Unlock()

	out := make([]EntrySnapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, snapshotEntry(e))
	}
	return out
}

// SnapshotOf describes a single entry.
func (c *HandleCache) SnapshotOf(name string) (EntrySnapshot, bool) {
	c.mu.Lock()
	e, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return EntrySnapshot{}, false
	}
	return snapshotEntry(e), true
}

func snapshotEntry(e *cacheEntry) EntrySnapshot {
	s := EntrySnapshot{Name: e.name, Required: e.required.String()}
	if !isReady(e) {
		s.State = EntryLoading
		return s
	}

	for _, f := range e.rejected {
		s.Rejected = append(s.Rejected, FailureSnapshot{
			Path:   f.Candidate.ResolvedPath,
			Kind:   f.Kind.Error(),
			Reason: f.Reason.Error(),
		})
	}

	if e.backend == nil {
		s.State = EntryUnavailable
		return s
	}

	s.State = EntryLoaded
	if e.backend.released.Load() {
		s.State = EntryReleased
	}
	s.Path = e.backend.path
	s.Version = e.backend.version.String()
	s.Level = Level(e.backend.level.Load()).String()
	s.Symbols = e.backend.Symbols()
	return s
}
