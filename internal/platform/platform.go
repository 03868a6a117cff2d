// Package platform maps the running OS and CPU to the identifier used in
// executable asset names.
package platform

import (
	"errors"
	"runtime"

	"golang.org/x/xerrors"
)

var ErrUnsupported = errors.New("unsupported operating system")

// Identify returns the platform identifier for a GOOS/GOARCH pair, e.g.
// linux-x64 for linux/amd64. All macOS builds share one universal binary.
func Identify(goos, goarch string) (string, error) {
	switch goos {
	case "darwin":
		return "macos", nil
	case "linux":
		switch goarch {
		case "amd64":
			return "linux-x64", nil
		case "arm64":
			return "linux-arm64", nil
		}
	case "windows":
		if goarch == "amd64" {
			return "windows-x64", nil
		}
	}
	return "", xerrors.Errorf("%w: %s/%s", ErrUnsupported, goos, goarch)
}

// Current is the identifier of the running binary's platform
func Current() (string, error) {
	return Identify(runtime.GOOS, runtime.GOARCH)
}
