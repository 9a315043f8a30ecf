package rapidslogger

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Version is an interface version triple. Suffix holds any pre-release or
// build text following the patch number; it is kept for display and never
// takes part in comparisons.
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// ParseVersion parses "MAJOR.MINOR.PATCH" with an optional "-pre" and/or
// "+build" suffix. A leading "v" is accepted.
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")

	core, suffix := raw, ""
	if i := strings.IndexAny(raw, "-+"); i >= 0 {
		core, suffix = raw[:i], raw[i:]
	}

	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q: expected MAJOR.MINOR.PATCH", ErrMalformedVersion, s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || p == "" || p[0] == '+' || p[0] == '-' {
			return Version{}, fmt.Errorf("%w: %q: component %d is not a non-negative integer", ErrMalformedVersion, s, i)
		}
		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Suffix: suffix}, nil
}

// MustParseVersion is like ParseVersion but panics on error. Intended for
// constants and tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Suffix)
}

// Compare orders versions by their numeric triple.
func (v Version) Compare(other Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, other.Patch)
}

// Compatible reports whether v, as reported by a backend, satisfies required.
// The majors must be equal and (minor, patch) must be at least the required
// pair.
func (v Version) Compatible(required Version) bool {
	if v.Major != required.Major {
		return false
	}
	return v.Compare(required) >= 0
}
