package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scenerelay/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	idleSweepEvery = 10 * time.Second
)

// helloEnvelope is the one frame shape the transport must partially decode
// before a PlayerRecord exists: it needs LoginRequest plus the entering
// pose, matching wire.HelloFrame.
type helloEnvelope struct {
	wire.HelloFrame
}

// connState is one live websocket connection plus the bookkeeping the read
// pump and idle sweeper need, grounded on mine-and-die's subscriber
// (conn + write mutex) extended with a last-activity timestamp standing in
// for its Hub.lastHeartbeat polling.
type connState struct {
	conn         *websocket.Conn
	outbox       *clientOutbox
	mu           sync.Mutex
	lastActivity time.Time
}

func (c *connState) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *connState) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastActivity)
}

func (c *connState) writeRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WebSocketTransport is the one concrete Transport this repository ships
// (spec.md §6), built on gorilla/websocket and grounded on mine-and-die's
// internal/net/ws handler: one upgrade endpoint and one read-pump goroutine
// per connection. A failed outbound frame write is discarded; it does not
// close the connection.
type WebSocketTransport struct {
	logger     *log.Logger
	allocateID func() uint16
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	conns   map[uint16]*connState
	started bool

	handlers Handlers
	server   *http.Server

	stopSweep chan struct{}
}

// NewWebSocketTransport builds a transport. allocateID mints the id a new
// connection will be known by before any PlayerRecord exists (I5): the core
// owns id allocation (session.IDAllocator), the transport only calls it.
func NewWebSocketTransport(logger *log.Logger, allocateID func() uint16) *WebSocketTransport {
	if logger == nil {
		logger = log.Default()
	}
	return &WebSocketTransport{
		logger:     logger,
		allocateID: allocateID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:     make(map[uint16]*connState),
		stopSweep: make(chan struct{}),
	}
}

func (t *WebSocketTransport) SetHandlers(h Handlers) {
	t.handlers = h
}

func (t *WebSocketTransport) IsStarted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.started
}

// StartListening binds the upgrade endpoint and begins the idle-connection
// sweeper, which also flushes every outbox on a short interval. The core
// owns client ids (IDAllocator): each connection whose Hello decodes is
// given the id that allocateID returns.
func (t *WebSocketTransport) StartListening(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", t.handleUpgrade)

	addr := fmt.Sprintf(":%d", port)
	t.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.started = true
	t.mu.Unlock()

	go t.sweepIdle()
	go func() {
		if err := t.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.logger.Printf("websocket transport stopped serving: %v", err)
		}
	}()
	return nil
}

func (t *WebSocketTransport) Stop() error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	conns := make([]*connState, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	close(t.stopSweep)
	for _, c := range conns {
		c.outbox.flush()
		_ = c.conn.Close()
	}
	if t.server != nil {
		return t.server.Close()
	}
	return nil
}

func (t *WebSocketTransport) OutboxFor(id uint16) UpdateBuilder {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.conns[id]
	if !ok {
		return nil
	}
	return c.outbox
}

func (t *WebSocketTransport) SetDataForAllClients(fn func(UpdateBuilder)) {
	t.mu.RLock()
	conns := make([]*connState, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.RUnlock()
	for _, c := range conns {
		fn(c.outbox)
	}
}

func (t *WebSocketTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	id, remoteAddr, hello, ok := t.readLogin(conn)
	if !ok {
		_ = conn.Close()
		return
	}

	state := &connState{conn: conn, lastActivity: time.Now()}
	state.outbox = newClientOutbox(state.writeRaw)

	accepted := false
	if t.handlers.OnLoginRequest != nil {
		accepted = t.handlers.OnLoginRequest(id, remoteAddr, hello, state.outbox)
	}
	if !accepted {
		state.outbox.flush()
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "login rejected")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	state.outbox.flush()

	t.mu.Lock()
	t.conns[id] = state
	t.mu.Unlock()

	go t.pingLoop(id, state)
	t.readPump(id, state)
}

// readLogin blocks for exactly one inbound frame: the Hello a Reserved
// client must send before anything else, per spec.md §4.6.
func (t *WebSocketTransport) readLogin(conn *websocket.Conn) (id uint16, remoteAddr string, hello wire.HelloFrame, ok bool) {
	_, payload, err := conn.ReadMessage()
	if err != nil {
		return 0, "", wire.HelloFrame{}, false
	}
	var envelope wire.InboundEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Kind != wire.PacketHelloServer {
		return 0, "", wire.HelloFrame{}, false
	}
	var frame helloEnvelope
	if err := json.Unmarshal(envelope.Payload, &frame); err != nil {
		return 0, "", wire.HelloFrame{}, false
	}
	remoteAddr = conn.RemoteAddr().String()
	return t.allocateID(), remoteAddr, frame.HelloFrame, true
}

// readPump is the per-connection goroutine that owns inbound reads, mirrored
// on mine-and-die's ws.Handler.Serve loop: read, decode, dispatch, repeat
// until the connection errors. A read-deadline expiry is reported as a
// timeout; any other read error as a disconnect.
func (t *WebSocketTransport) readPump(id uint16, state *connState) {
	timedOut := false
	defer state.conn.Close()
	defer func() { t.dropConn(id, state, timedOut) }()

	for {
		_, payload, err := state.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			timedOut = errors.As(err, &netErr) && netErr.Timeout()
			return
		}
		state.touch()

		var envelope wire.InboundEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			t.logger.Printf("discarding malformed frame from client %d: %v", id, err)
			continue
		}
		if t.handlers.OnMessage != nil {
			t.handlers.OnMessage(id, envelope)
		}
		state.outbox.flush()
	}
}

func (t *WebSocketTransport) pingLoop(id uint16, state *connState) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		t.mu.RLock()
		_, live := t.conns[id]
		t.mu.RUnlock()
		if !live {
			return
		}
		state.mu.Lock()
		state.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := state.conn.WriteMessage(websocket.PingMessage, nil)
		state.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (t *WebSocketTransport) sweepIdle() {
	ticker := time.NewTicker(idleSweepEvery)
	defer ticker.Stop()
	flushTicker := time.NewTicker(50 * time.Millisecond)
	defer flushTicker.Stop()
	for {
		select {
		case <-t.stopSweep:
			return
		case <-flushTicker.C:
			t.mu.RLock()
			live := make([]*connState, 0, len(t.conns))
			for _, c := range t.conns {
				live = append(live, c)
			}
			t.mu.RUnlock()
			for _, c := range live {
				c.outbox.flush()
			}
		case now := <-ticker.C:
			t.mu.RLock()
			stale := make([]uint16, 0)
			for id, c := range t.conns {
				if c.idleSince(now) > pongWait {
					stale = append(stale, id)
				}
			}
			t.mu.RUnlock()
			for _, id := range stale {
				t.mu.RLock()
				c, ok := t.conns[id]
				t.mu.RUnlock()
				if !ok {
					continue
				}
				t.dropConn(id, c, true)
				_ = c.conn.Close()
			}
		}
	}
}

func (t *WebSocketTransport) dropConn(id uint16, state *connState, timeout bool) {
	t.mu.Lock()
	if current, ok := t.conns[id]; !ok || current != state {
		t.mu.Unlock()
		return
	}
	delete(t.conns, id)
	t.mu.Unlock()

	if timeout {
		if t.handlers.OnClientTimeout != nil {
			t.handlers.OnClientTimeout(id)
		}
	} else if t.handlers.OnClientDisconnect != nil {
		t.handlers.OnClientDisconnect(id)
	}
}
