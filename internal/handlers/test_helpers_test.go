package handlers

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"impostor/internal/config"
	"impostor/internal/game"
	"impostor/internal/scheduler"
	"impostor/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// manualScheduler queues callbacks until a test fires them.
type manualScheduler struct {
	mu        sync.Mutex
	after     map[string][]func()
	every     map[string][]func() bool
	cancelled []string
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{
		after: make(map[string][]func()),
		every: make(map[string][]func() bool),
	}
}

func (s *manualScheduler) After(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after[key] = append(s.after[key], fn)
}

func (s *manualScheduler) Every(key string, interval time.Duration, fn func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.every[key] = append(s.every[key], fn)
}

func (s *manualScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.after, key)
	delete(s.every, key)
	s.cancelled = append(s.cancelled, key)
}

func (s *manualScheduler) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.after[key]) + len(s.every[key])
}

func (s *manualScheduler) Stop() {}

// fireNext runs the oldest one-shot callback queued under key.
func (s *manualScheduler) fireNext(key string) bool {
	s.mu.Lock()
	queue := s.after[key]
	if len(queue) == 0 {
		s.mu.Unlock()
		return false
	}
	fn := queue[0]
	s.after[key] = queue[1:]
	s.mu.Unlock()

	fn()
	return true
}

// tick runs every periodic callback under key once, dropping those that
// decline to continue.
func (s *manualScheduler) tick(key string) {
	s.mu.Lock()
	fns := s.every[key]
	s.every[key] = nil
	s.mu.Unlock()

	var keep []func() bool
	for _, fn := range fns {
		if fn() {
			keep = append(keep, fn)
		}
	}

	s.mu.Lock()
	s.every[key] = append(keep, s.every[key]...)
	s.mu.Unlock()
}

func (s *manualScheduler) wasCancelled(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.cancelled {
		if k == key {
			return true
		}
	}
	return false
}

// mockScheduler records calls for expectations.
type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) After(key string, d time.Duration, fn func()) {
	m.Called(key, d)
}

func (m *mockScheduler) Every(key string, interval time.Duration, fn func() bool) {
	m.Called(key, interval)
}

func (m *mockScheduler) Cancel(key string) {
	m.Called(key)
}

func (m *mockScheduler) Pending(key string) int {
	return m.Called(key).Int(0)
}

func (m *mockScheduler) Stop() {
	m.Called()
}

func testCategories() []game.Category {
	return []game.Category{
		{ID: "fruits", Name: "Fruits", Icon: "🍎", Words: []string{"Apple", "Banana", "Cherry", "Mango", "Papaya", "Kiwi", "Peach", "Plum"}},
		{ID: "animals", Name: "Animals", Icon: "🐾", Words: []string{"Tiger", "Giraffe", "Penguin", "Dolphin", "Rabbit", "Falcon", "Otter", "Badger"}},
	}
}

type testEnv struct {
	h     *Handler
	sched *manualScheduler
	clock *fakeClock
	cfg   *config.ServerConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sched := newManualScheduler()
	e := newTestEnvWith(t, sched)
	e.sched = sched
	return e
}

// newTestEnvWith builds the environment around any scheduler. sched on the
// returned env is only set by newTestEnv.
func newTestEnvWith(t *testing.T, sched scheduler.Scheduler) *testEnv {
	t.Helper()

	catalog, err := game.NewCatalogFromCategories(testCategories())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := store.NewMemoryStore(game.RoomDeps{
		Catalog:  catalog,
		Selector: game.NewSelector(rand.NewSource(7)),
		Rules:    cfg.Rules(),
		Clock:    clock.Now,
	}, store.Options{
		CodeLength:      cfg.Game.RoomCodeLength,
		StaleRoomAge:    cfg.Game.StaleRoomAge,
		DisconnectGrace: cfg.Game.DisconnectGrace,
		LocalSessionTTL: cfg.Game.LocalSessionTTL,
		RoomSettings:    cfg.RoomSettings(),
	})

	return &testEnv{
		h:     New(s, catalog, cfg, sched),
		clock: clock,
		cfg:   cfg,
	}
}

// attach registers a connection without a socket behind it. Frames queue
// on its send channel.
func (e *testEnv) attach(playerID string) *Client {
	c := newClient(nil, playerID, nil)
	e.h.hub.Register(c)
	return c
}

// setupRoom creates a room hosted by p1 and seats p2..pn, all connected.
func (e *testEnv) setupRoom(t *testing.T, n int) (string, []*Client) {
	t.Helper()
	names := []string{"Alice", "Bob", "Cara", "Dan", "Eve", "Finn"}
	clients := make([]*Client, n)
	clients[0] = e.attach("p1")
	joined, err := e.h.dispatcher.CreateRoom("p1", names[0])
	require.NoError(t, err)

	for i := 1; i < n; i++ {
		id := "p" + string(rune('1'+i))
		clients[i] = e.attach(id)
		_, err := e.h.dispatcher.JoinRoom(id, joined.Room.Code, names[i])
		require.NoError(t, err)
	}
	for _, c := range clients {
		drain(c)
	}
	return joined.Room.Code, clients
}

func (e *testEnv) room(t *testing.T, code string) *game.Room {
	t.Helper()
	room, err := e.h.store.GetRoom(code)
	require.NoError(t, err)
	return room
}

// key is the scheduler key of a live room.
func (e *testEnv) key(t *testing.T, code string) string {
	t.Helper()
	return e.room(t, code).ID
}

func (e *testEnv) phase(t *testing.T, code string) game.Phase {
	t.Helper()
	v := e.room(t, code).Snapshot()
	if v.Game == nil {
		return game.PhaseLobby
	}
	return v.Game.Phase
}

type wireFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	Raw  string          `json:"-"`
}

// drain returns every frame queued for c without blocking.
func drain(c *Client) []wireFrame {
	var out []wireFrame
	for {
		select {
		case b, ok := <-c.send:
			if !ok {
				return out
			}
			var f wireFrame
			_ = json.Unmarshal(b, &f)
			f.Raw = string(b)
			out = append(out, f)
		default:
			return out
		}
	}
}

func ofType(frames []wireFrame, typ game.EventType) []wireFrame {
	var out []wireFrame
	for _, f := range frames {
		if f.Type == string(typ) {
			out = append(out, f)
		}
	}
	return out
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
