package assets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	fslock "github.com/ipfs/go-fs-lock"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"zknet/internal/config"
	"zknet/internal/transfer"
)

var log = logging.Logger("assets")

const lockFile = "fetch.lock"

var (
	ErrUnknownNetwork  = errors.New("unknown network")
	ErrFetchInProgress = errors.New("another fetch for this network is in progress")
)

// FetchOptions tunes a single FetchNetworkAssets call. A nil *FetchOptions
// is valid.
type FetchOptions struct {
	// ReuseExecutable skips the executable download when it is already on
	// disk from an earlier fetch.
	ReuseExecutable bool
	// Progress returns the observer for assets that show progress.
	Progress func(AssetSpec) transfer.ProgressObserver
}

func (o *FetchOptions) observer(spec AssetSpec) transfer.ProgressObserver {
	if o == nil || o.Progress == nil || !spec.ShowProgress {
		return transfer.Nop
	}
	if obs := o.Progress(spec); obs != nil {
		return obs
	}
	return transfer.Nop
}

func (o *FetchOptions) reuseExecutable() bool {
	return o != nil && o.ReuseExecutable
}

// Orchestrator fetches the assets of a network into the local data directory
type Orchestrator struct {
	cfg          *config.Config
	client       *http.Client
	platformArch string
	assets       []AssetSpec
}

// NewOrchestrator creates an orchestrator. cfg must already be validated
// and platformArch is used verbatim as the executable URL suffix.
func NewOrchestrator(cfg *config.Config, client *http.Client, platformArch string) *Orchestrator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Orchestrator{
		cfg:          cfg,
		client:       client,
		platformArch: platformArch,
		assets:       DefaultAssets(),
	}
}

// NetworkDir returns the local directory of networkID
func (o *Orchestrator) NetworkDir(networkID string) (string, error) {
	if err := ValidateNetworkID(networkID); err != nil {
		return "", err
	}
	return filepath.Join(o.cfg.NetworksDir(), networkID), nil
}

// Paths returns where the assets of networkID live, whether or not they
// have been fetched.
func (o *Orchestrator) Paths(networkID string) (*LocalAssetPaths, error) {
	dir, err := o.NetworkDir(networkID)
	if err != nil {
		return nil, err
	}
	return localPaths(dir, o.platformArch), nil
}

func (o *Orchestrator) assetURL(networkID string, spec AssetSpec) string {
	u := strings.TrimRight(o.cfg.URLNetwork, "/") + "/" + networkID + "/" + spec.Name
	if spec.Executable {
		u += "-" + o.platformArch
	}
	return u
}

// Probe checks that the distribution point knows networkID by requesting
// its network configuration.
func (o *Orchestrator) Probe(ctx context.Context, networkID string) error {
	if err := ValidateNetworkID(networkID); err != nil {
		return err
	}

	if o.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ProbeTimeout)
		defer cancel()
	}

	u := o.assetURL(networkID, AssetSpec{Name: NetworkConfigAsset})
	err := transfer.Download(ctx, o.client, u, io.Discard, nil)
	if err == nil {
		return nil
	}

	var se *transfer.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return xerrors.Errorf("%w: %s", ErrUnknownNetwork, networkID)
	}
	return xerrors.Errorf("probing network %s: %w", networkID, err)
}

// FetchNetworkAssets downloads every asset of networkID into its network
// directory and prepares the executable. Assets are fetched concurrently and
// the first failure cancels the remaining downloads.
func (o *Orchestrator) FetchNetworkAssets(ctx context.Context, networkID string, opts *FetchOptions) (*LocalAssetPaths, error) {
	paths, err := o.Paths(networkID)
	if err != nil {
		return nil, err
	}

	if err := o.Probe(ctx, networkID); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(paths.Dir, 0o755); err != nil {
		return nil, xerrors.Errorf("creating network directory %s: %w", paths.Dir, err)
	}

	unlock, err := fslock.Lock(paths.Dir, lockFile)
	if err != nil {
		le := fslock.LockedError("")
		if errors.As(err, &le) {
			return nil, xerrors.Errorf("%w: %s", ErrFetchInProgress, networkID)
		}
		return nil, xerrors.Errorf("locking %s: %w", paths.Dir, err)
	}
	defer func() {
		if err := unlock.Close(); err != nil {
			log.Errorw("unlock fetch lock", "network", networkID, "error", err)
		}
	}()

	session := uuid.New().String()
	log.Infow("fetching network assets", "network", networkID, "session", session, "dir", paths.Dir, "platform", o.platformArch)

	g, gctx := errgroup.WithContext(ctx)
	for _, spec := range o.assets {
		if spec.Executable && opts.reuseExecutable() && fileExists(paths.Executable) {
			log.Infow("reusing executable", "network", networkID, "session", session, "path", paths.Executable)
			continue
		}

		spec := spec
		g.Go(func() error {
			return o.fetchAsset(gctx, networkID, paths.Dir, spec, opts.observer(spec))
		})
	}
	if err := g.Wait(); err != nil {
		log.Warnw("fetching network assets failed", "network", networkID, "session", session, "error", err)
		return nil, err
	}

	exe, err := prepareExecutable(filepath.Join(paths.Dir, ExecutableAsset), o.platformArch)
	if err != nil {
		return nil, err
	}
	paths.Executable = exe

	log.Infow("network assets ready", "network", networkID, "session", session)
	return paths, nil
}

func (o *Orchestrator) fetchAsset(ctx context.Context, networkID, dir string, spec AssetSpec, obs transfer.ProgressObserver) error {
	target := filepath.Join(dir, spec.Name)
	part := target + ".part"

	f, err := os.Create(part)
	if err != nil {
		return xerrors.Errorf("creating %s: %w", part, err)
	}

	u := o.assetURL(networkID, spec)
	log.Debugw("downloading asset", "asset", spec.Name, "url", u)

	if err := transfer.Download(ctx, o.client, u, f, &transfer.RequestOptions{Progress: obs}); err != nil {
		removePart(part)
		return xerrors.Errorf("fetching %s: %w", spec.Name, err)
	}

	if err := checkFormat(part, spec); err != nil {
		removePart(part)
		return err
	}

	if err := os.Rename(part, target); err != nil {
		removePart(part)
		return xerrors.Errorf("moving %s into place: %w", spec.Name, err)
	}
	return nil
}

func removePart(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warnw("removing partial download", "path", path, "error", err)
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// ListNetworks returns the networks that have a local directory, sorted by
// name. A data directory that was never used yields an empty list.
func (o *Orchestrator) ListNetworks() ([]string, error) {
	entries, err := os.ReadDir(o.cfg.NetworksDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, xerrors.Errorf("listing networks: %w", err)
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && ValidateNetworkID(e.Name()) == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
