package assets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	fslock "github.com/ipfs/go-fs-lock"
	"github.com/stretchr/testify/require"

	"zknet/internal/config"
	"zknet/internal/transfer"
	"zknet/pkg/types"
)

const (
	testToml     = "[Client]\nName = \"testnet\"\n"
	testServices = `{"RPCEndpoints":[{"chain":"Ethereum","network":"Mainnet","chainId":1,"rpcPath":"/eth","isTestnet":false},{"chain":"Ethereum","network":"Sepolia","chainId":11155111,"rpcPath":"/sepolia","isTestnet":true},{"chain":"Solana","network":"Mainnet","rpcPath":"/sol","isTestnet":false}]}`
	testBinary   = "#!/bin/sh\necho walletshield\n"
)

type distServer struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string]string
	status   map[string]int
	block    map[string]bool
	requests []string
	count    atomic.Int64
}

func newDistServer(t *testing.T, network, platformArch string) *distServer {
	d := &distServer{
		files: map[string]string{
			"/" + network + "/client.toml":                  testToml,
			"/" + network + "/services.json":                testServices,
			"/" + network + "/walletshield-" + platformArch: testBinary,
		},
		status: map[string]int{},
		block:  map[string]bool{},
	}
	d.Server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.Close)
	return d
}

func (d *distServer) serve(w http.ResponseWriter, r *http.Request) {
	d.count.Add(1)
	d.mu.Lock()
	d.requests = append(d.requests, r.URL.Path)
	body, ok := d.files[r.URL.Path]
	status := d.status[r.URL.Path]
	block := d.block[r.URL.Path]
	d.mu.Unlock()

	if block {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
		return
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (d *distServer) set(path, body string, status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if body != "" {
		d.files[path] = body
	}
	d.status[path] = status
}

func (d *distServer) requested(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.requests {
		if p == path {
			return true
		}
	}
	return false
}

func newTestOrchestrator(t *testing.T, srv *distServer, platformArch string) (*Orchestrator, *config.Config) {
	cfg := config.NewDefaultConfig()
	cfg.URLNetwork = srv.URL
	cfg.DataDir = t.TempDir()
	return NewOrchestrator(cfg, srv.Client(), platformArch), cfg
}

func TestValidateNetworkID(t *testing.T) {
	for _, id := range []string{"testnet", "main-net_2", "net.v1"} {
		require.NoError(t, ValidateNetworkID(id), id)
	}
	for _, id := range []string{"", ".", "..", "../evil", "a/b", `a\b`, "/abs", "net\x00"} {
		require.ErrorIs(t, ValidateNetworkID(id), ErrInvalidNetworkID, id)
	}
}

func TestFetchInvalidIDDoesNoIO(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	o, cfg := newTestOrchestrator(t, srv, "linux-x64")

	_, err := o.FetchNetworkAssets(context.Background(), "../evil", nil)
	require.ErrorIs(t, err, ErrInvalidNetworkID)
	require.Zero(t, srv.count.Load())

	_, err = os.Stat(cfg.NetworksDir())
	require.True(t, os.IsNotExist(err))
}

func TestFetchNetworkAssets(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	o, cfg := newTestOrchestrator(t, srv, "linux-x64")

	paths, err := o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.NoError(t, err)

	dir := filepath.Join(cfg.DataDir, "networks", "testnet")
	require.Equal(t, dir, paths.Dir)
	require.Equal(t, filepath.Join(dir, "client.toml"), paths.NetworkConfig)
	require.Equal(t, filepath.Join(dir, "services.json"), paths.Services)
	require.Equal(t, filepath.Join(dir, "walletshield"), paths.Executable)

	for path, want := range map[string]string{
		paths.NetworkConfig: testToml,
		paths.Services:      testServices,
		paths.Executable:    testBinary,
	} {
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, want, string(got))

		_, err = os.Stat(path + ".part")
		require.True(t, os.IsNotExist(err))
	}

	require.True(t, srv.requested("/testnet/walletshield-linux-x64"))

	if runtime.GOOS != "windows" {
		st, err := os.Stat(paths.Executable)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o755), st.Mode().Perm())
	}

	// a second fetch overwrites in place and ends in the same state
	again, err := o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.NoError(t, err)
	require.Equal(t, paths, again)
}

func TestFetchWindowsExecutable(t *testing.T) {
	srv := newDistServer(t, "testnet", "windows-x64")
	o, _ := newTestOrchestrator(t, srv, "windows-x64")

	paths, err := o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(paths.Dir, "walletshield.exe"), paths.Executable)

	got, err := os.ReadFile(paths.Executable)
	require.NoError(t, err)
	require.Equal(t, testBinary, string(got))

	_, err = os.Stat(filepath.Join(paths.Dir, "walletshield"))
	require.True(t, os.IsNotExist(err))
}

func TestFetchOneAssetFails(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	srv.set("/testnet/walletshield-linux-x64", "", http.StatusNotFound)
	o, _ := newTestOrchestrator(t, srv, "linux-x64")

	_, err := o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.Error(t, err)

	var se *transfer.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.StatusCode)

	paths, err := o.Paths("testnet")
	require.NoError(t, err)
	for _, p := range []string{paths.Executable, paths.Executable + ".part"} {
		_, err := os.Stat(p)
		require.True(t, os.IsNotExist(err), p)
	}
}

func TestFetchFailureCancelsSiblings(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	srv.set("/testnet/services.json", "", http.StatusInternalServerError)
	srv.mu.Lock()
	srv.block["/testnet/walletshield-linux-x64"] = true
	srv.mu.Unlock()
	o, _ := newTestOrchestrator(t, srv, "linux-x64")

	start := time.Now()
	_, err := o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.Error(t, err)

	var se *transfer.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusInternalServerError, se.StatusCode)
	require.Less(t, time.Since(start), 4*time.Second)
}

func TestFetchUnknownNetwork(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	o, cfg := newTestOrchestrator(t, srv, "linux-x64")

	_, err := o.FetchNetworkAssets(context.Background(), "nosuchnet", nil)
	require.ErrorIs(t, err, ErrUnknownNetwork)

	_, err = os.Stat(filepath.Join(cfg.NetworksDir(), "nosuchnet"))
	require.True(t, os.IsNotExist(err))
}

func TestFetchMalformedConfig(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	srv.set("/testnet/client.toml", "[[[ not toml", 0)
	o, _ := newTestOrchestrator(t, srv, "linux-x64")

	_, err := o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.ErrorIs(t, err, ErrMalformedAsset)

	paths, err := o.Paths("testnet")
	require.NoError(t, err)
	_, err = os.Stat(paths.NetworkConfig)
	require.True(t, os.IsNotExist(err))
}

func TestFetchReuseExecutable(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	srv.set("/testnet/walletshield-linux-x64", "", http.StatusNotFound)
	o, _ := newTestOrchestrator(t, srv, "linux-x64")

	paths, err := o.Paths("testnet")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(paths.Dir, 0o755))
	require.NoError(t, os.WriteFile(paths.Executable, []byte("cached"), 0o644))

	got, err := o.FetchNetworkAssets(context.Background(), "testnet", &FetchOptions{ReuseExecutable: true})
	require.NoError(t, err)
	require.False(t, srv.requested("/testnet/walletshield-linux-x64"))

	data, err := os.ReadFile(got.Executable)
	require.NoError(t, err)
	require.Equal(t, "cached", string(data))

	if runtime.GOOS != "windows" {
		st, err := os.Stat(got.Executable)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o755), st.Mode().Perm())
	}
}

func TestFetchProgressOnlyForExecutable(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	o, _ := newTestOrchestrator(t, srv, "linux-x64")

	var (
		mu     sync.Mutex
		asked  []string
		events []types.ProgressEvent
	)
	opts := &FetchOptions{
		Progress: func(spec AssetSpec) transfer.ProgressObserver {
			mu.Lock()
			asked = append(asked, spec.Name)
			mu.Unlock()
			return transfer.ProgressFunc(func(ev types.ProgressEvent) {
				mu.Lock()
				events = append(events, ev)
				mu.Unlock()
			})
		},
	}

	_, err := o.FetchNetworkAssets(context.Background(), "testnet", opts)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{ExecutableAsset}, asked)
	require.NotEmpty(t, events)
	require.Equal(t, uint64(len(testBinary)), events[len(events)-1].Transferred)
}

func TestFetchInProgress(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	o, _ := newTestOrchestrator(t, srv, "linux-x64")

	dir, err := o.NetworkDir("testnet")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	held, err := fslock.Lock(dir, lockFile)
	require.NoError(t, err)
	defer held.Close()

	_, err = o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.ErrorIs(t, err, ErrFetchInProgress)
}

func TestListNetworks(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	o, cfg := newTestOrchestrator(t, srv, "linux-x64")

	nets, err := o.ListNetworks()
	require.NoError(t, err)
	require.Empty(t, nets)

	_, err = o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.NetworksDir(), "mainnet"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.NetworksDir(), "stray"), nil, 0o644))

	nets, err = o.ListNetworks()
	require.NoError(t, err)
	require.Equal(t, []string{"mainnet", "testnet"}, nets)
}

func TestReadServices(t *testing.T) {
	srv := newDistServer(t, "testnet", "linux-x64")
	o, _ := newTestOrchestrator(t, srv, "linux-x64")

	paths, err := o.FetchNetworkAssets(context.Background(), "testnet", nil)
	require.NoError(t, err)

	svc, err := ReadServices(paths)
	require.NoError(t, err)
	require.Len(t, svc.RPCEndpoints, 3)
	require.NotNil(t, svc.RPCEndpoints[0].ChainID)
	require.EqualValues(t, 1, *svc.RPCEndpoints[0].ChainID)
	require.Nil(t, svc.RPCEndpoints[2].ChainID)

	mainnets := svc.Filter(false, "")
	require.Len(t, mainnets, 2)

	eth := svc.Filter(true, "ETH")
	require.Len(t, eth, 2)
	require.Equal(t, "Sepolia", eth[1].Network)

	require.Equal(t, "http://localhost:7071/eth", mainnets[0].URL(":7071"))
	require.Equal(t, "http://127.0.0.1:9000/sol", mainnets[1].URL("127.0.0.1:9000"))
}
