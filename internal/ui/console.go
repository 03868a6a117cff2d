package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"

	"zknet/internal/assets"
)

var (
	_ InteractiveUI   = (*ConsoleUI)(nil)
	_ ProgressDisplay = (*ProgressUI)(nil)
)

// ConsoleUI implements InteractiveUI on a pair of terminal streams
type ConsoleUI struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

// NewConsoleUI creates a console UI. Nil writers default to stdout and
// stderr.
func NewConsoleUI(out, errOut io.Writer) *ConsoleUI {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &ConsoleUI{out: out, errOut: errOut}
}

// ShowMessage displays a message to the user
func (c *ConsoleUI) ShowMessage(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, message)
}

func (c *ConsoleUI) ShowServiceOutput(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[walletshield] %s\n", line)
}

func (c *ConsoleUI) ShowServiceError(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.errOut, "[walletshield] %s\n", line)
}

// NewProgress returns a progress bar drawn on the error stream, leaving
// stdout clean for output that may be piped.
func (c *ConsoleUI) NewProgress(description string) ProgressDisplay {
	return NewProgressUI(c.errOut, description)
}

// ShowEndpoints prints one row per endpoint with its local URL
func (c *ConsoleUI) ShowEndpoints(endpoints []assets.RPCEndpoint, listenAddress string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(endpoints) == 0 {
		fmt.Fprintln(c.out, "No RPC endpoints found.")
		return
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHAIN\tNETWORK\tCHAIN ID\tURL")
	for _, e := range endpoints {
		chainID := "-"
		if e.ChainID != nil {
			chainID = fmt.Sprint(*e.ChainID)
		}
		testnet := ""
		if e.IsTestnet {
			testnet = " (testnet)"
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%s\t%s\n", e.Chain, e.Network, testnet, chainID, e.URL(listenAddress))
	}
	_ = tw.Flush()
}
