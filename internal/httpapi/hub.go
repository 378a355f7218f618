package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vigilhq/vigil/internal/engine"
	"github.com/vigilhq/vigil/internal/health"
)

const (
	// broadcastInterval is how often the latest report is pushed to clients.
	broadcastInterval = 15 * time.Second

	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often ping frames are sent. Must be less
	// than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins; callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients on every broadcast tick.
type Message struct {
	Event string         `json:"event"`
	Data  *health.Report `json:"data"`
}

// hub manages WebSocket client connections and broadcasts the latest
// report to all connected clients every interval.
type hub struct {
	runner *engine.Runner

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket client. send carries outgoing
// frames and is never closed; done signals writePump to shut the
// connection down. Closing done instead of send keeps broadcast's
// lock-free channel sends safe against a concurrent disconnect.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

func newHub(runner *engine.Runner) *hub {
	return &hub{
		runner:  runner,
		clients: make(map[*client]struct{}),
	}
}

// run starts the broadcast ticker loop. It blocks until ctx is cancelled,
// then closes all active connections.
func (h *hub) run(ctx context.Context) {
	t := time.NewTicker(broadcastInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcast()
		}
	}
}

// serveWS upgrades the HTTP connection to WebSocket and serves the client.
// The latest report is sent immediately on connect; subsequent updates
// arrive via the ticker loop. Blocks until the connection closes.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
	h.register(c)
	defer h.unregister(c)

	if data, ok := h.buildMessage(); ok {
		select {
		case c.send <- data:
		default:
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// --- internal ---------------------------------------------------------------

func (h *hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes c from the hub and signals its writePump to stop.
// The map membership check under the lock makes the done close exactly
// once no matter how many paths race to disconnect the client.
func (h *hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.done)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast() {
	data, ok := h.buildMessage()
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Client's outgoing buffer is full; disconnect it.
			h.unregister(c)
		}
	}
}

func (h *hub) buildMessage() ([]byte, bool) {
	rep, ok := h.runner.Latest()
	if !ok {
		return nil, false
	}
	data, err := json.Marshal(Message{Event: "report", Data: rep})
	if err != nil {
		return nil, false
	}
	return data, true
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.done)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its
// own goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// Hub shutting down or client removed.
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes (and discards) inbound frames so control messages are
// processed, and enforces the pong deadline.
func (c *client) readPump() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
