package assets

import (
	"path/filepath"
	"strings"
)

// Format is how a fetched asset is checked before it is put in place
type Format int

const (
	FormatBinary Format = iota
	FormatTOML
	FormatJSON
)

// AssetSpec describes one file a network requires
type AssetSpec struct {
	Name         string
	Executable   bool // URL carries the platform suffix, file is made runnable
	ShowProgress bool
	Format       Format
}

const (
	NetworkConfigAsset = "client.toml"
	ServicesAsset      = "services.json"
	ExecutableAsset    = "walletshield"
)

// DefaultAssets is the fixed set fetched for every network
func DefaultAssets() []AssetSpec {
	return []AssetSpec{
		{Name: NetworkConfigAsset, Format: FormatTOML},
		{Name: ServicesAsset, Format: FormatJSON},
		{Name: ExecutableAsset, Executable: true, ShowProgress: true, Format: FormatBinary},
	}
}

// LocalAssetPaths are the on-disk locations of a fetched network
type LocalAssetPaths struct {
	Dir           string
	NetworkConfig string
	Services      string
	Executable    string
}

func isWindows(platformArch string) bool {
	return strings.HasPrefix(platformArch, "windows")
}

// executableName is the final file name of the executable on platformArch
func executableName(platformArch string) string {
	if isWindows(platformArch) {
		return ExecutableAsset + ".exe"
	}
	return ExecutableAsset
}

func localPaths(dir, platformArch string) *LocalAssetPaths {
	return &LocalAssetPaths{
		Dir:           dir,
		NetworkConfig: filepath.Join(dir, NetworkConfigAsset),
		Services:      filepath.Join(dir, ServicesAsset),
		Executable:    filepath.Join(dir, executableName(platformArch)),
	}
}
