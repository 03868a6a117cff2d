package assets

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// ErrMalformedAsset is returned when a textual asset does not parse
var ErrMalformedAsset = errors.New("malformed asset")

const executableMode os.FileMode = 0o755

// checkFormat parses textual assets so a truncated or HTML error page is not
// handed to the service as its configuration.
func checkFormat(path string, spec AssetSpec) error {
	if spec.Format == FormatBinary {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return xerrors.Errorf("reading %s: %w", spec.Name, err)
	}

	switch spec.Format {
	case FormatTOML:
		var v map[string]any
		if _, err := toml.Decode(string(data), &v); err != nil {
			return xerrors.Errorf("%w: %s: %s", ErrMalformedAsset, spec.Name, err)
		}
	case FormatJSON:
		if !json.Valid(data) {
			return xerrors.Errorf("%w: %s is not valid JSON", ErrMalformedAsset, spec.Name)
		}
	}
	return nil
}

// prepareExecutable makes the downloaded executable runnable on
// platformArch and returns its final path. Running it again on an already
// prepared file changes nothing.
func prepareExecutable(downloaded, platformArch string) (string, error) {
	if isWindows(platformArch) {
		target := downloaded + ".exe"
		if !fileExists(downloaded) && fileExists(target) {
			return target, nil
		}
		if err := os.Rename(downloaded, target); err != nil {
			return "", xerrors.Errorf("renaming %s to %s: %w", downloaded, target, err)
		}
		return target, nil
	}

	if err := os.Chmod(downloaded, executableMode); err != nil {
		return "", xerrors.Errorf("chmod %s: %w", downloaded, err)
	}
	return downloaded, nil
}
