package assets

import (
	"errors"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

// ErrInvalidNetworkID is returned, before any I/O, for identifiers that are
// not a single plain path component.
var ErrInvalidNetworkID = errors.New("invalid network id")

// ValidateNetworkID accepts identifiers that can be used verbatim as one URL
// path segment and one directory name.
func ValidateNetworkID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
		return xerrors.Errorf("%w: %q", ErrInvalidNetworkID, id)
	case strings.ContainsAny(id, `/\`+"\x00"):
		return xerrors.Errorf("%w: %q contains a path separator", ErrInvalidNetworkID, id)
	case filepath.VolumeName(id) != "":
		return xerrors.Errorf("%w: %q names a volume", ErrInvalidNetworkID, id)
	case filepath.Clean(id) != id:
		return xerrors.Errorf("%w: %q is not a clean path component", ErrInvalidNetworkID, id)
	}
	return nil
}
