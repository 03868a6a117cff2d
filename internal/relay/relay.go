package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"
	"golang.org/x/xerrors"

	"zknet/pkg/types"
)

var log = logging.Logger("relay")

var (
	ErrUnknownConnection = errors.New("unknown connection")
	ErrAlreadyStarted    = errors.New("relay already started")
	ErrClosed            = errors.New("relay closed")
	ErrQueueFull         = errors.New("outbound queue full")
)

const (
	outboundQueueSize = 32
	maxMessageSize    = 1 << 20
	eventBufferSize   = 32
	closeWriteTimeout = time.Second
)

// ConnID identifies one client connection for the lifetime of the relay
type ConnID = uint64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type conn struct {
	id   ConnID
	ws   *websocket.Conn
	out  chan string
	done chan struct{}
}

// Relay accepts WebSocket clients on one address, reports what they send as
// events and routes replies back to them by connection id.
type Relay struct {
	nextID atomic.Uint64
	events chan types.RelayEvent

	mu      sync.Mutex
	conns   map[ConnID]*conn
	srv     *http.Server
	ln      net.Listener
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func New() *Relay {
	return &Relay{
		events:  make(chan types.RelayEvent, eventBufferSize),
		conns:   make(map[ConnID]*conn),
		closing: make(chan struct{}),
	}
}

// Start binds listenAddress and serves clients in the background
func (r *Relay) Start(listenAddress string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return ErrClosed
	case r.srv != nil:
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return xerrors.Errorf("binding relay to %s: %w", listenAddress, err)
	}

	r.ln = ln
	r.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := r.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("relay server stopped", "error", err)
		}
	}()

	log.Infow("relay listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address, nil before Start
func (r *Relay) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

// Events delivers connection lifecycle and inbound request events. The
// channel is closed once Close has torn down every connection. Events of a
// single connection arrive in order: opened, its requests, closed.
func (r *Relay) Events() <-chan types.RelayEvent {
	return r.events
}

// Connections returns the ids of the live connections in ascending order
func (r *Relay) Connections() []ConnID {
	r.mu.Lock()
	ids := make([]ConnID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reply queues data for delivery to connection id as one text frame. It
// returns once the message is queued, not once it is written.
func (r *Relay) Reply(ctx context.Context, id ConnID, data string) error {
	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		log.Debugw("reply to unknown connection", "conn", id)
		return xerrors.Errorf("%w: %d", ErrUnknownConnection, id)
	}

	select {
	case <-c.done:
		return xerrors.Errorf("%w: %d", ErrUnknownConnection, id)
	default:
	}

	select {
	case c.out <- data:
		return nil
	case <-c.done:
		log.Debugw("connection closed before reply was queued", "conn", id)
		return xerrors.Errorf("%w: %d", ErrUnknownConnection, id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryReply is Reply without waiting: when the connection's outbound queue
// is full the message is not queued and ErrQueueFull is returned.
func (r *Relay) TryReply(id ConnID, data string) error {
	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		return xerrors.Errorf("%w: %d", ErrUnknownConnection, id)
	}

	select {
	case <-c.done:
		return xerrors.Errorf("%w: %d", ErrUnknownConnection, id)
	default:
	}

	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return xerrors.Errorf("%w: %d", ErrUnknownConnection, id)
	default:
		return xerrors.Errorf("%w: %d", ErrQueueFull, id)
	}
}

// Close stops accepting clients, closes every live connection, waits for
// their closed events to be delivered or dropped and closes the event
// channel.
func (r *Relay) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.closing)
		srv := r.srv
		live := make([]*conn, 0, len(r.conns))
		for _, c := range r.conns {
			live = append(live, c)
		}
		r.mu.Unlock()

		var err error
		if srv != nil {
			multierr.AppendInto(&err, srv.Close())
		}

		deadline := time.Now().Add(closeWriteTimeout)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay shutting down")
		for _, c := range live {
			werr := c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
			if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) && !errors.Is(werr, net.ErrClosed) {
				multierr.AppendInto(&err, xerrors.Errorf("closing connection %d: %w", c.id, werr))
			}
			_ = c.ws.Close()
		}

		r.wg.Wait()
		close(r.events)
		r.closeErr = err
		log.Infow("relay closed", "connections", len(live))
	})
	return r.closeErr
}

// emit blocks until the event is taken unless the relay is closing, in
// which case the event is dropped.
func (r *Relay) emit(ev types.RelayEvent) {
	select {
	case r.events <- ev:
	case <-r.closing:
		log.Debugw("dropping event during shutdown", "kind", ev.Kind, "conn", ev.ConnID)
	}
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warnw("websocket upgrade failed", "remote", req.RemoteAddr, "error", err)
		return
	}

	c := &conn{
		ws:   ws,
		out:  make(chan string, outboundQueueSize),
		done: make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.id = r.nextID.Add(1)
	r.conns[c.id] = c
	r.wg.Add(1)
	r.mu.Unlock()

	defer r.wg.Done()

	log.Debugw("connection opened", "conn", c.id, "remote", req.RemoteAddr)
	r.emit(types.RelayEvent{Kind: types.ConnectionOpened, ConnID: c.id})

	r.serveConn(c)
}

func (r *Relay) serveConn(c *conn) {
	c.ws.SetReadLimit(maxMessageSize)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			typ, data, err := c.ws.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debugw("connection read ended", "conn", c.id, "error", err)
				}
				return
			}
			if typ != websocket.TextMessage {
				continue
			}
			r.emit(types.RelayEvent{Kind: types.InboundRequest, ConnID: c.id, Data: string(data)})
		}
	}()

loop:
	for {
		select {
		case msg := <-c.out:
			if err := c.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				log.Debugw("connection write failed", "conn", c.id, "error", err)
				break loop
			}
		case <-readDone:
			break loop
		case <-r.closing:
			break loop
		}
	}

	r.mu.Lock()
	delete(r.conns, c.id)
	r.mu.Unlock()

	_ = c.ws.Close()
	close(c.done)
	<-readDone

	log.Debugw("connection closed", "conn", c.id)
	r.emit(types.RelayEvent{Kind: types.ConnectionClosed, ConnID: c.id})
}
