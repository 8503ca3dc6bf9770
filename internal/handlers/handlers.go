package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"impostor/internal/config"
	"impostor/internal/game"
	"impostor/internal/middleware"
	"impostor/internal/scheduler"
	"impostor/internal/store"
)

// SessionCookie identifies a browser across websocket reconnects.
const SessionCookie = "impostor_session"

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store      *store.MemoryStore
	catalog    *game.Catalog
	config     *config.ServerConfig
	hub        *Hub
	eventBus   *EventBus
	sessions   *Sessions
	dispatcher *Dispatcher
	limiter    *middleware.RateLimiter // set by SetupRouter
}

// New creates a new handler
func New(s *store.MemoryStore, catalog *game.Catalog, cfg *config.ServerConfig, sched scheduler.Scheduler) *Handler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h := &Handler{
		store:    s,
		catalog:  catalog,
		config:   cfg,
		hub:      NewHub(),
		eventBus: NewEventBus(),
		sessions: NewSessions(),
	}
	h.dispatcher = NewDispatcher(s, h.hub, h.eventBus, sched)
	return h
}

// Store returns the handler's store (for testing)
func (h *Handler) Store() *store.MemoryStore {
	return h.store
}

// Dispatcher returns the intent dispatcher.
func (h *Handler) Dispatcher() *Dispatcher {
	return h.dispatcher
}

// OnSweep pushes the effects of a registry sweep to clients and drops
// expired browser sessions.
func (h *Handler) OnSweep(report store.CleanupReport) {
	h.dispatcher.OnSweep(report)
	h.sessions.Expire(time.Now(), h.config.Server.SessionCookieTTL)
	if h.limiter != nil {
		h.limiter.Cleanup(h.config.Game.CleanupInterval)
	}
}

// Event is a public room event delivered to room watchers.
type Event struct {
	Type     game.EventType
	RoomCode string
	Data     interface{}
}

// EventBus fans public room events out to watchers (SSE streams).
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe subscribes to events for a room
func (eb *EventBus) Subscribe(roomCode string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[roomCode] = append(eb.subscribers[roomCode], ch)
	return ch
}

// Unsubscribe removes a subscription
func (eb *EventBus) Unsubscribe(roomCode string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[roomCode]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[roomCode] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(eb.subscribers[roomCode]) == 0 {
		delete(eb.subscribers, roomCode)
	}
}

// Publish publishes an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[event.RoomCode] {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// SubscriberCount returns the number of watchers of a room.
func (eb *EventBus) SubscriberCount(roomCode string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers[roomCode])
}

type session struct {
	playerID string
	lastSeen time.Time
}

// Sessions maps opaque cookie tokens to player ids. The token never leaves
// the cookie; the player id is public.
type Sessions struct {
	mu     sync.Mutex
	tokens map[string]*session
}

// NewSessions creates an empty session table.
func NewSessions() *Sessions {
	return &Sessions{tokens: make(map[string]*session)}
}

// Resolve returns the player id for token, minting a fresh token and id when
// the token is unknown.
func (s *Sessions) Resolve(token string, now time.Time) (newToken, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.tokens[token]; ok && token != "" {
		sess.lastSeen = now
		return token, sess.playerID
	}

	newToken = uuid.NewString()
	playerID = uuid.NewString()
	s.tokens[newToken] = &session{playerID: playerID, lastSeen: now}
	return newToken, playerID
}

// Expire forgets tokens unused for longer than ttl.
func (s *Sessions) Expire(now time.Time, ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, sess := range s.tokens {
		if now.Sub(sess.lastSeen) > ttl {
			delete(s.tokens, token)
			n++
		}
	}
	return n
}

// Len returns the number of known tokens.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// resolveSession reads the session cookie and returns the player id, along
// with the cookie to set when a new session was minted.
func (h *Handler) resolveSession(r *http.Request) (string, *http.Cookie) {
	var token string
	if c, err := r.Cookie(SessionCookie); err == nil {
		token = c.Value
	}

	newToken, playerID := h.sessions.Resolve(token, time.Now())
	if newToken == token {
		return playerID, nil
	}
	return playerID, &http.Cookie{
		Name:     SessionCookie,
		Value:    newToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.config.Server.SessionCookieTTL / time.Second),
	}
}
