// Package realtime implements the websocket channel: it accepts upgraded
// connections, feeds inbound events to the delivery reducer, and fans each
// resulting update out to every open connection.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parceltrack/backend/internal/domain"
	"github.com/parceltrack/backend/internal/event"
)

// writeWait bounds how long a single broadcast write may block on one client.
const writeWait = 10 * time.Second

// Applier is the delivery event reducer the hub delegates inbound events to.
// Implemented by service.DeliveryService.
type Applier interface {
	Apply(ctx context.Context, ev event.Inbound) (domain.Delivery, bool, error)
}

// conn wraps one websocket connection with a write lock, because broadcasts
// and any future per-connection replies must not interleave frames.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// writeJSON sends one JSON message, serialized under the connection's write lock.
func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// Hub owns the process-wide set of live realtime connections.
// Connections are added on upgrade and removed on their own close or error
// signal; a broadcast snapshots the set before iterating, so adds and
// removes during a broadcast are safe.
type Hub struct {
	applier  Applier
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}
}

// NewHub constructs a Hub that applies events through applier.
// All origins are accepted, mirroring the wide-open CORS policy of the HTTP API.
func NewHub(applier Applier, log *slog.Logger) *Hub {
	return &Hub{
		applier: applier,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*conn]struct{}),
	}
}

// IsUpgrade reports whether r asks for a websocket upgrade. The server root
// serves both the liveness text and the realtime channel; this is how the
// root handler tells them apart.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// ServeHTTP upgrades the request and reads event messages until the client
// goes away. There is no handshake or authentication beyond the upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &conn{ws: ws}
	h.add(c)
	h.log.Debug("websocket connection established", "remote", ws.RemoteAddr().String())

	defer func() {
		h.remove(c)
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			// Close or error signal: the deferred remove drops the
			// connection from the set.
			return
		}
		h.handleMessage(data)
	}
}

// handleMessage decodes one inbound message, applies it, and broadcasts the
// updated delivery when a mutation happened. Every fault is swallowed here:
// a malformed message or a storage error must never terminate the connection
// or the process.
func (h *Hub) handleMessage(data []byte) {
	ev, err := event.Decode(data)
	if err != nil {
		h.log.Warn("dropping malformed realtime message", "error", err)
		return
	}

	// No cancellation or timeout: a slow storage call delays this
	// connection's read loop only.
	updated, ok, err := h.applier.Apply(context.Background(), ev)
	if err != nil {
		h.log.Error("applying realtime event failed", "error", err)
		return
	}
	if !ok {
		return
	}

	h.Broadcast(event.NewDeliveryUpdated(updated))
}

// Broadcast sends msg to every connection currently in the set, including the
// one the triggering event arrived on. The set is snapshot first, so
// registrations and removals during the fan-out are safe. A connection that
// fails to take the write is closed and removed; there is no retry and no
// queue, so a client that is not open simply misses the update.
func (h *Hub) Broadcast(msg any) {
	h.mu.Lock()
	snapshot := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	for _, c := range snapshot {
		if err := c.writeJSON(msg); err != nil {
			h.log.Warn("dropping unwritable websocket connection", "error", err)
			h.remove(c)
			_ = c.ws.Close()
		}
	}
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}
