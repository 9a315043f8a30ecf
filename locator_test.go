package rapidslogger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidatePaths(cs []LibraryCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ResolvedPath
	}
	return out
}

func TestLibraryFileName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "libcore-logger.so", LibraryFileName("core-logger", PosixSharedObject))
	assert.Equal(t, "core-logger.dll", LibraryFileName("core-logger", WindowsDLL))
	assert.Equal(t, "libcore-logger.dylib", LibraryFileName("core-logger", MacOSDylib))
}

func TestPlatformForGOOS(t *testing.T) {
	t.Parallel()
	assert.Equal(t, WindowsDLL, platformForGOOS("windows"))
	assert.Equal(t, MacOSDylib, platformForGOOS("darwin"))
	assert.Equal(t, PosixSharedObject, platformForGOOS("linux"))
	assert.Equal(t, PosixSharedObject, platformForGOOS("freebsd"))
}

func TestParsePlatformTag(t *testing.T) {
	t.Parallel()
	for _, p := range []PlatformTag{PosixSharedObject, WindowsDLL, MacOSDylib} {
		got, err := ParsePlatformTag(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePlatformTag("wasm")
	assert.ErrorIs(t, err, ErrUnknownPlatform)
}

func TestSearchPathLocatorOrdering(t *testing.T) {
	t.Parallel()

	loc := NewSearchPathLocator(LocatorConfig{
		Overrides:    map[string]string{"core-logger": "/opt/custom/libcore.so"},
		OverridePath: "/opt/override/libany.so",
		SearchRoots:  []string{"/usr/local/lib", "", "~/lib"},
		HomeDir:      "/home/dev",
	})

	cs := loc.Candidates("core-logger", PosixSharedObject)
	assert.Equal(t, []string{
		"/opt/custom/libcore.so",
		"/opt/override/libany.so",
		filepath.Join("/usr/local/lib", "libcore-logger.so"),
		filepath.Join("/home/dev", "lib", "libcore-logger.so"),
		"libcore-logger.so",
	}, candidatePaths(cs))

	for _, c := range cs {
		assert.Equal(t, "core-logger", c.LogicalName)
		assert.Equal(t, PosixSharedObject, c.Platform)
	}
}

func TestSearchPathLocatorOverrideOnlyForMatchingName(t *testing.T) {
	t.Parallel()

	loc := NewSearchPathLocator(LocatorConfig{
		Overrides:   map[string]string{"core-logger": "/opt/custom/libcore.so"},
		SearchRoots: []string{"/lib"},
	})
	assert.Equal(t, []string{filepath.Join("/lib", "other.dll"), "other.dll"},
		candidatePaths(loc.Candidates("other", WindowsDLL)))
}

func TestSearchPathLocatorDeduplicates(t *testing.T) {
	t.Parallel()

	loc := NewSearchPathLocator(LocatorConfig{
		OverridePath: "/usr/lib/libx.so",
		SearchRoots:  []string{"/usr/lib", "/usr/lib"},
	})
	assert.Equal(t, []string{"/usr/lib/libx.so", "libx.so"}, candidatePaths(loc.Candidates("x", PosixSharedObject)))
}

func TestSearchPathLocatorCopiesConfig(t *testing.T) {
	t.Parallel()

	cfg := LocatorConfig{
		Overrides:   map[string]string{"x": "/a/libx.so"},
		SearchRoots: []string{"/b"},
	}
	loc := NewSearchPathLocator(cfg)
	cfg.Overrides["x"] = "/changed"
	cfg.SearchRoots[0] = "/changed"

	assert.Equal(t, []string{"/a/libx.so", filepath.Join("/b", "libx.so"), "libx.so"},
		candidatePaths(loc.Candidates("x", PosixSharedObject)))
}

func TestSearchPathLocatorNoConfig(t *testing.T) {
	t.Parallel()

	cs := NewSearchPathLocator(LocatorConfig{}).Candidates("core-logger", MacOSDylib)
	require.Len(t, cs, 1)
	assert.Equal(t, "libcore-logger.dylib", cs[0].ResolvedPath)
}
