package assets

import (
	"encoding/json"
	"net"
	"os"
	"strings"

	"golang.org/x/xerrors"
)

// RPCEndpoint is one chain endpoint served through the local service
type RPCEndpoint struct {
	Chain     string `json:"chain"`
	Network   string `json:"network"`
	ChainID   *int64 `json:"chainId,omitempty"`
	RPCPath   string `json:"rpcPath"`
	IsTestnet bool   `json:"isTestnet"`
}

// URL is the endpoint as reachable through a service listening on
// listenAddress.
func (e RPCEndpoint) URL(listenAddress string) string {
	host, port, err := net.SplitHostPort(listenAddress)
	if err != nil {
		return "http://" + listenAddress + e.RPCPath
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + e.RPCPath
}

// Services is the decoded services.json of a network
type Services struct {
	RPCEndpoints []RPCEndpoint `json:"RPCEndpoints"`
}

// Filter returns the endpoints matching term (case-insensitive, on chain or
// network name). Testnets are dropped unless includeTestnets is set.
func (s Services) Filter(includeTestnets bool, term string) []RPCEndpoint {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]RPCEndpoint, 0, len(s.RPCEndpoints))
	for _, e := range s.RPCEndpoints {
		if e.IsTestnet && !includeTestnets {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(e.Chain), term) &&
			!strings.Contains(strings.ToLower(e.Network), term) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ReadServices decodes the services.json fetched for a network
func ReadServices(paths *LocalAssetPaths) (Services, error) {
	var s Services
	data, err := os.ReadFile(paths.Services)
	if err != nil {
		return s, xerrors.Errorf("reading services: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, xerrors.Errorf("%w: %s: %s", ErrMalformedAsset, ServicesAsset, err)
	}
	return s, nil
}
