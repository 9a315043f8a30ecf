package rapidslogger

import (
	"path/filepath"
	"strings"
)

// LibraryCandidate is one location the loader should try for a logical name.
type LibraryCandidate struct {
	LogicalName  string
	ResolvedPath string
	Platform     PlatformTag
}

// Locator produces the ordered candidates to probe for a logical name.
// Implementations must not perform I/O; existence is the loader's concern.
type Locator interface {
	Candidates(name string, platform PlatformTag) []LibraryCandidate
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(name string, platform PlatformTag) []LibraryCandidate

// Candidates implements Locator.
func (f LocatorFunc) Candidates(name string, platform PlatformTag) []LibraryCandidate {
	return f(name, platform)
}

// LocatorConfig is the externally supplied search configuration.
type LocatorConfig struct {
	// Overrides maps a logical name to an explicit library path.
	Overrides map[string]string

	// OverridePath, when set, is tried for every logical name ahead of the
	// search roots.
	OverridePath string

	// SearchRoots are directories probed in order.
	SearchRoots []string

	// HomeDir is used to expand search roots starting with "~/".
	HomeDir string
}

// SearchPathLocator proposes candidates from explicit overrides, then the
// configured search roots, then the bare file name so the platform's dynamic
// linker can resolve it.
type SearchPathLocator struct {
	cfg LocatorConfig
}

// NewSearchPathLocator creates a locator over a copy of cfg.
func NewSearchPathLocator(cfg LocatorConfig) *SearchPathLocator {
	cp := LocatorConfig{
		OverridePath: cfg.OverridePath,
		SearchRoots:  append([]string(nil), cfg.SearchRoots...),
		HomeDir:      cfg.HomeDir,
	}
	if len(cfg.Overrides) > 0 {
		cp.Overrides = make(map[string]string, len(cfg.Overrides))
		for k, v := range cfg.Overrides {
			cp.Overrides[k] = v
		}
	}
	return &SearchPathLocator{cfg: cp}
}

// Candidates implements Locator.
func (l *SearchPathLocator) Candidates(name string, platform PlatformTag) []LibraryCandidate {
	fileName := LibraryFileName(name, platform)
	paths := make([]string, 0, len(l.cfg.SearchRoots)+3)

	if p, ok := l.cfg.Overrides[name]; ok && p != "" {
		paths = append(paths, p)
	}
	if l.cfg.OverridePath != "" {
		paths = append(paths, l.cfg.OverridePath)
	}
	for _, root := range l.cfg.SearchRoots {
		if root == "" {
			continue
		}
		paths = append(paths, filepath.Join(l.expandHome(root), fileName))
	}
	paths = append(paths, fileName)

	seen := make(map[string]struct{}, len(paths))
	candidates := make([]LibraryCandidate, 0, len(paths))
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		candidates = append(candidates, LibraryCandidate{
			LogicalName:  name,
			ResolvedPath: p,
			Platform:     platform,
		})
	}
	return candidates
}

// expandHome expands ~ to the configured home directory
func (l *SearchPathLocator) expandHome(path string) string {
	if l.cfg.HomeDir != "" && strings.HasPrefix(path, "~/") {
		return filepath.Join(l.cfg.HomeDir, path[2:])
	}
	return path
}
