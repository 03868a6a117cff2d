package app

import "context"

// NetworkConnector defines the interface for joining a network
type NetworkConnector interface {
	// Run fetches the network assets and runs the service until it exits
	// or ctx is cancelled
	Run(ctx context.Context, opts *ConnectOptions) error
}

// RequestServer defines the interface for the front-end API
type RequestServer interface {
	// Start binds the API listener
	Start(listenAddress string) error
	// Serve answers requests until ctx is cancelled
	Serve(ctx context.Context) error
}

// RequestHandler answers one front-end request
type RequestHandler func(ctx context.Context, request string) (string, error)
