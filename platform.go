package rapidslogger

import (
	"fmt"
	"runtime"
)

// PlatformTag identifies the native module format a candidate is expected to
// be in.
type PlatformTag int

const (
	PosixSharedObject PlatformTag = iota
	WindowsDLL
	MacOSDylib
)

func (p PlatformTag) String() string {
	switch p {
	case PosixSharedObject:
		return "posix_shared_object"
	case WindowsDLL:
		return "windows_dll"
	case MacOSDylib:
		return "macos_dylib"
	default:
		return fmt.Sprintf("PlatformTag(%d)", int(p))
	}
}

// ParsePlatformTag parses the String form of a tag.
func ParsePlatformTag(s string) (PlatformTag, error) {
	for _, p := range []PlatformTag{PosixSharedObject, WindowsDLL, MacOSDylib} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}

// HostPlatform returns the tag for the platform this binary was built for.
func HostPlatform() PlatformTag {
	return platformForGOOS(runtime.GOOS)
}

func platformForGOOS(goos string) PlatformTag {
	switch goos {
	case "windows":
		return WindowsDLL
	case "darwin", "ios":
		return MacOSDylib
	default:
		return PosixSharedObject
	}
}

// LibraryFileName returns the conventional file name for a logical library
// name on the given platform.
func LibraryFileName(name string, platform PlatformTag) string {
	switch platform {
	case WindowsDLL:
		return name + ".dll"
	case MacOSDylib:
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}
