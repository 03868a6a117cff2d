package types

// RelayEventKind names the events surfaced by the connection relay
type RelayEventKind string

const (
	ConnectionOpened RelayEventKind = "api_conn_open"
	InboundRequest   RelayEventKind = "api_request"
	ConnectionClosed RelayEventKind = "api_conn_close"
)

// RelayEvent is delivered on the relay's application event stream.
// Data is only set for InboundRequest.
type RelayEvent struct {
	Kind   RelayEventKind `json:"kind"`
	ConnID uint64         `json:"conn_id"`
	Data   string         `json:"data,omitempty"`
}
