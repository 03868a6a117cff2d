package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"zknet/internal/assets"
	"zknet/internal/config"
	"zknet/internal/reporter"
	"zknet/internal/supervisor"
	"zknet/internal/transfer"
	"zknet/internal/ui"
)

var log = logging.Logger("app")

// ErrServiceFailed is returned when the service exits unsuccessfully on its own
var ErrServiceFailed = errors.New("service exited unsuccessfully")

// ConnectOptions configures one connect run
type ConnectOptions struct {
	NetworkID       string // Required: network to join
	ListenAddress   string // Service listen address, config default when empty
	ReuseExecutable bool
	// LogProgress also writes download progress to the log. Meant for runs
	// where no progress bar is visible.
	LogProgress bool
}

var _ NetworkConnector = (*ConnectApp)(nil)

// ConnectApp joins a network: fetch assets, start the service, stream its
// output until it exits.
type ConnectApp struct {
	config       *config.Config
	orchestrator *assets.Orchestrator
	ui           ui.InteractiveUI
}

// NewConnectApp creates a new connect application
func NewConnectApp(cfg *config.Config, orchestrator *assets.Orchestrator, ui ui.InteractiveUI) *ConnectApp {
	return &ConnectApp{
		config:       cfg,
		orchestrator: orchestrator,
		ui:           ui,
	}
}

// Run joins opts.NetworkID. Cancelling ctx kills the service; that is a
// clean shutdown and returns nil.
func (a *ConnectApp) Run(ctx context.Context, opts *ConnectOptions) error {
	if opts == nil || opts.NetworkID == "" {
		return xerrors.New("network id is required")
	}
	listen := opts.ListenAddress
	if listen == "" {
		listen = a.config.WalletshieldListenAddress
	}

	a.ui.ShowMessage(fmt.Sprintf("Joining network %s", opts.NetworkID))

	paths, err := a.fetch(ctx, opts)
	if err != nil {
		return xerrors.Errorf("fetching assets of %s: %w", opts.NetworkID, err)
	}

	if svc, err := assets.ReadServices(paths); err == nil {
		a.ui.ShowMessage(fmt.Sprintf("Network %s offers %d RPC endpoints", opts.NetworkID, len(svc.RPCEndpoints)))
	} else {
		log.Warnw("reading services", "network", opts.NetworkID, "error", err)
	}

	svc, err := supervisor.Start(supervisor.Options{
		BinaryPath:    paths.Executable,
		WorkDir:       paths.Dir,
		ListenAddress: listen,
		ConfigFile:    a.config.NetworkConfigFile(),
		Stdout:        a.ui.ShowServiceOutput,
		Stderr:        a.ui.ShowServiceError,
	})
	if err != nil {
		return err
	}
	a.ui.ShowMessage(fmt.Sprintf("walletshield running (pid %d), listening on %s", svc.PID(), listen))

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Infow("stopping service", "pid", svc.PID())
			if err := svc.Kill(); err != nil {
				log.Errorw("killing service", "pid", svc.PID(), "error", err)
			}
		case <-exited:
		}
	}()

	status, err := svc.Wait()
	close(exited)
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		a.ui.ShowMessage("walletshield stopped")
		return nil
	}
	if !status.Success() {
		return xerrors.Errorf("%w: %s", ErrServiceFailed, status)
	}
	a.ui.ShowMessage("walletshield exited")
	return nil
}

func (a *ConnectApp) fetch(ctx context.Context, opts *ConnectOptions) (*assets.LocalAssetPaths, error) {
	var (
		mu       sync.Mutex
		displays []ui.ProgressDisplay
	)
	defer func() {
		for _, d := range displays {
			d.Finish()
		}
	}()

	return a.orchestrator.FetchNetworkAssets(ctx, opts.NetworkID, &assets.FetchOptions{
		ReuseExecutable: opts.ReuseExecutable,
		Progress: func(spec assets.AssetSpec) transfer.ProgressObserver {
			d := a.ui.NewProgress("Downloading " + spec.Name)
			mu.Lock()
			displays = append(displays, d)
			mu.Unlock()
			return progressObserver(d, spec.Name, opts.LogProgress)
		},
	})
}

func progressObserver(d ui.ProgressDisplay, name string, logProgress bool) transfer.ProgressObserver {
	if !logProgress {
		return d
	}
	return transfer.Multi(d, reporter.NewProgressReporter(name, 0))
}
