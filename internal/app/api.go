package app

import (
	"context"
	"encoding/json"
	"errors"

	"zknet/internal/relay"
	"zknet/pkg/types"
)

// EchoHandler answers every request with {"ok":true,"echo":<request>}
func EchoHandler(_ context.Context, request string) (string, error) {
	out, err := json.Marshal(struct {
		OK   bool   `json:"ok"`
		Echo string `json:"echo"`
	}{true, request})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var _ RequestServer = (*RelayApp)(nil)

// RelayApp serves front-end requests arriving through the relay
type RelayApp struct {
	relay   *relay.Relay
	handler RequestHandler
}

// NewRelayApp creates a relay application. A nil handler echoes requests.
func NewRelayApp(r *relay.Relay, handler RequestHandler) *RelayApp {
	if handler == nil {
		handler = EchoHandler
	}
	return &RelayApp{relay: r, handler: handler}
}

// Start binds the relay. A bind failure is returned to the caller.
func (a *RelayApp) Start(listenAddress string) error {
	return a.relay.Start(listenAddress)
}

// Serve handles relay events in arrival order until ctx is cancelled, then
// closes the relay.
func (a *RelayApp) Serve(ctx context.Context) error {
	events := a.relay.Events()
	for {
		select {
		case <-ctx.Done():
			err := a.relay.Close()
			for range events {
			}
			return err
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.handle(ctx, ev)
		}
	}
}

func (a *RelayApp) handle(ctx context.Context, ev types.RelayEvent) {
	switch ev.Kind {
	case types.ConnectionOpened:
		log.Infow("api connection opened", "conn", ev.ConnID)
	case types.ConnectionClosed:
		log.Infow("api connection closed", "conn", ev.ConnID)
	case types.InboundRequest:
		resp, err := a.handler(ctx, ev.Data)
		if err != nil {
			log.Warnw("api request failed", "conn", ev.ConnID, "error", err)
			b, _ := json.Marshal(map[string]any{"ok": false, "error": err.Error()})
			resp = string(b)
		}
		// a client that stops reading must not stall the shared event loop
		if err := a.relay.TryReply(ev.ConnID, resp); err != nil {
			switch {
			case errors.Is(err, relay.ErrUnknownConnection):
				log.Debugw("reply dropped", "conn", ev.ConnID)
			case errors.Is(err, relay.ErrQueueFull):
				log.Warnw("reply dropped, client not reading", "conn", ev.ConnID)
			default:
				log.Warnw("reply failed", "conn", ev.ConnID, "error", err)
			}
		}
	}
}
