package ui

import (
	"zknet/internal/assets"
	"zknet/internal/transfer"
)

// InteractiveUI defines what the application flows show on the terminal
type InteractiveUI interface {
	// ShowMessage displays a status message to the user
	ShowMessage(message string)

	// ShowServiceOutput displays one line the service wrote to stdout
	ShowServiceOutput(line string)

	// ShowServiceError displays one line the service wrote to stderr
	ShowServiceError(line string)

	// NewProgress starts a progress display for one transfer
	NewProgress(description string) ProgressDisplay

	// ShowEndpoints lists RPC endpoints reachable through the service
	ShowEndpoints(endpoints []assets.RPCEndpoint, listenAddress string)
}

// ProgressDisplay renders the progress of one transfer
type ProgressDisplay interface {
	transfer.ProgressObserver

	// Finish completes the display and prints a summary
	Finish()
}
