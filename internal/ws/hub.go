// Package ws pushes motion alerts and light state changes to connected
// browsers over WebSocket.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub manages WebSocket connections and broadcasts alerts to all of them.
type Hub struct {
	mu    sync.Mutex
	conns map[*client]struct{}

	upgrader websocket.Upgrader
}

type client struct {
	conn   *websocket.Conn
	send   chan any
	done   chan struct{}
	userID int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Token auth happens before the upgrade; cross-origin browser
			// clients are expected on the LAN
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends a JSON message to every connected client. Slow clients
// are dropped rather than blocking the broadcaster.
func (h *Hub) Broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		select {
		case c.send <- msg:
		default:
			log.Warn().Int64("user_id", c.userID).Msg("WebSocket client too slow, dropping connection")
			h.removeLocked(c)
		}
	}
}

// Serve upgrades the request and services the connection until the client
// disconnects. The caller has already authenticated the user.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID int64, username string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan any, 16),
		done:   make(chan struct{}),
		userID: userID,
	}

	// Queue the welcome before the client is visible to Broadcast
	c.send <- map[string]any{
		"type":    "connected",
		"message": "Welcome " + username + "! You'll receive motion alerts here.",
		"user":    username,
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	log.Info().Int64("user_id", userID).Int("total", total).Msg("WebSocket connected")

	go c.writeLoop()
	c.readLoop()

	h.mu.Lock()
	h.removeLocked(c)
	total = len(h.conns)
	h.mu.Unlock()

	log.Info().Int64("user_id", userID).Int("total", total).Msg("WebSocket disconnected")
}

// CloseAll disconnects every client (process shutdown).
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		h.removeLocked(c)
	}
}

// removeLocked must be called with h.mu held. The send channel is never
// closed: the readLoop may still be queueing a pong into it, and a send on
// a closed channel would panic. Shutdown is signalled through done instead;
// writeLoop exits on it and the client struct is collected once both loops
// return.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	close(c.done)
	c.conn.Close()
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readLoop() {
	// Drain client messages; only "ping" gets a reply
	for {
		var msg string
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg == "ping" {
			select {
			case c.send <- map[string]any{"type": "pong"}:
			case <-c.done:
				return
			default:
			}
		}
	}
}
