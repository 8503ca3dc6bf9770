package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"impostor/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SessionInfo is the first frame on every connection.
type SessionInfo struct {
	PlayerID string `json:"playerId"`
}

// ServeWS upgrades the request and runs the player's intent loop.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID, cookie := h.resolveSession(r)

	header := http.Header{}
	if cookie != nil {
		header.Add("Set-Cookie", cookie.String())
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		// the upgrader has already replied
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	if h.config.Server.MaxMessageSize > 0 {
		conn.SetReadLimit(h.config.Server.MaxMessageSize)
	}

	limiter := rate.NewLimiter(rate.Limit(h.config.Server.IntentRate), h.config.Server.IntentBurst)
	client := newClient(conn, playerID, limiter)
	h.hub.Register(client)
	log.Debug().Str("player", playerID).Msg("websocket connected")

	go client.writePump()
	client.trySend(encodeFrame(ServerFrame{Type: frameSession, Data: SessionInfo{PlayerID: playerID}}))
	h.dispatcher.Connected(playerID)

	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		if h.hub.Unregister(c) {
			h.dispatcher.Disconnected(c.playerID)
		}
		log.Debug().Str("player", c.playerID).Msg("websocket closed")
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("player", c.playerID).Msg("websocket read error")
			}
			return
		}
		c.trySend(encodeFrame(h.handleFrame(c, data)))
	}
}

// handleFrame decodes and runs one inbound message.
func (h *Handler) handleFrame(c *Client, data []byte) Ack {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return newAck(nil, nil, game.ErrInvalidInput)
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return Ack{Type: "ack", ID: frame.ID, Error: &WireError{Code: codeRateLimited, Message: "too many requests"}}
	}

	result, err := h.dispatcher.Handle(c.playerID, frame.Type, frame.Payload)
	if err != nil {
		log.Debug().Err(err).Str("player", c.playerID).Str("intent", frame.Type).Msg("intent rejected")
	}
	return newAck(frame.ID, result, err)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

// checkOrigin accepts requests without an Origin header, same-host origins
// when no allow list is configured, and listed origins otherwise.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	allowed := h.config.Server.AllowedOrigins
	if len(allowed) == 0 {
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
			return true
		}
	}
	return false
}
