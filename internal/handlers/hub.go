package handlers

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const sendBuffer = 64

// Client is one websocket connection bound to a player.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	limiter  *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, playerID string, limiter *rate.Limiter) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		playerID: playerID,
		limiter:  limiter,
	}
}

// close ends the write pump, which closes the connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// trySend queues frame without blocking. It fails on a closed client or a
// full buffer.
func (c *Client) trySend(frame []byte) (sent, full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, false
	}
	select {
	case c.send <- frame:
		return true, false
	default:
		return false, true
	}
}

// Hub tracks the live connection of every player. A player has at most one;
// a newer connection replaces the older one.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register makes c the player's connection, closing any previous one.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.playerID]
	h.clients[c.playerID] = c
	h.mu.Unlock()

	if old != nil && old != c {
		log.Debug().Str("player", c.playerID).Msg("connection replaced")
		old.close()
	}
}

// Unregister removes c if it is still the player's current connection and
// reports whether it was.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	current := h.clients[c.playerID] == c
	if current {
		delete(h.clients, c.playerID)
	}
	h.mu.Unlock()

	c.close()
	return current
}

// Send queues a frame for a player. Slow clients whose buffer is full are
// disconnected.
func (h *Hub) Send(playerID string, frame []byte) bool {
	h.mu.RLock()
	c := h.clients[playerID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}

	sent, full := c.trySend(frame)
	if full {
		log.Warn().Str("player", playerID).Msg("send buffer full, dropping connection")
		c.close()
	}
	return sent
}

// Connected reports whether the player has a live connection.
func (h *Hub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
