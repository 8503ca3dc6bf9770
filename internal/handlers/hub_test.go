package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impostor/internal/game"
)

func TestHubReplacesConnection(t *testing.T) {
	hub := NewHub()
	first := newClient(nil, "p1", nil)
	second := newClient(nil, "p1", nil)

	hub.Register(first)
	hub.Register(second)

	_, open := <-first.send
	assert.False(t, open, "replaced connection should be closed")
	assert.Equal(t, 1, hub.Count())

	assert.False(t, hub.Unregister(first), "stale connection is not current")
	assert.True(t, hub.Connected("p1"))
	assert.True(t, hub.Unregister(second))
	assert.False(t, hub.Connected("p1"))
}

func TestHubSend(t *testing.T) {
	hub := NewHub()
	assert.False(t, hub.Send("nobody", []byte("x")))

	c := newClient(nil, "p1", nil)
	hub.Register(c)
	require.True(t, hub.Send("p1", []byte(`{"type":"x"}`)))
	assert.Equal(t, `{"type":"x"}`, string(<-c.send))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	c := newClient(nil, "p1", nil)
	hub.Register(c)

	for i := 0; i < sendBuffer; i++ {
		require.True(t, hub.Send("p1", []byte("frame")))
	}
	assert.False(t, hub.Send("p1", []byte("overflow")))

	sent, full := c.trySend([]byte("after close"))
	assert.False(t, sent)
	assert.False(t, full, "a closed client reports neither sent nor full")
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("ROOM1")
	other := bus.Subscribe("ROOM2")
	assert.Equal(t, 1, bus.SubscriberCount("ROOM1"))

	bus.Publish(Event{Type: game.EventRoomUpdated, RoomCode: "ROOM1"})

	select {
	case ev := <-ch:
		assert.Equal(t, game.EventRoomUpdated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Empty(t, other)

	bus.Unsubscribe("ROOM1", ch)
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount("ROOM1"))
}

func TestEventBusSkipsFullSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe("ROOM1")

	for i := 0; i < 20; i++ {
		bus.Publish(Event{Type: game.EventTimerUpdate, RoomCode: "ROOM1"})
	}
	assert.Len(t, ch, cap(ch))
}

func TestSessions(t *testing.T) {
	s := NewSessions()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	token, id := s.Resolve("", now)
	require.NotEmpty(t, token)
	require.NotEmpty(t, id)
	assert.NotEqual(t, token, id, "the cookie token must not be the public player id")

	again, sameID := s.Resolve(token, now.Add(time.Minute))
	assert.Equal(t, token, again)
	assert.Equal(t, id, sameID)

	forged, otherID := s.Resolve("forged", now)
	assert.NotEqual(t, "forged", forged)
	assert.NotEqual(t, id, otherID)

	assert.Equal(t, 1, s.Expire(now.Add(time.Hour), 59*time.Minute+30*time.Second))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.Expire(now.Add(time.Hour), 0))
}

func TestResolveSessionCookie(t *testing.T) {
	e := newTestEnv(t)

	r := httptest.NewRequest("GET", "/ws", nil)
	id, cookie := e.h.resolveSession(r)
	require.NotNil(t, cookie)
	assert.Equal(t, SessionCookie, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, int(e.cfg.Server.SessionCookieTTL/time.Second), cookie.MaxAge)

	r = httptest.NewRequest("GET", "/ws", nil)
	r.AddCookie(cookie)
	sameID, none := e.h.resolveSession(r)
	assert.Equal(t, id, sameID)
	assert.Nil(t, none)
}

func TestAcks(t *testing.T) {
	id := json.RawMessage(`7`)

	tests := []struct {
		name string
		err  error
		want Ack
	}{
		{
			name: "success",
			want: Ack{Type: "ack", ID: id, OK: true, Data: "done"},
		},
		{
			name: "taxonomy error keeps its message",
			err:  game.ErrNotHost,
			want: Ack{Type: "ack", ID: id, Error: &WireError{Code: "unauthorized", Message: game.ErrNotHost.Error()}},
		},
		{
			name: "internal error is hidden",
			err:  errors.New("map exploded"),
			want: Ack{Type: "ack", ID: id, Error: &WireError{Code: "internal", Message: "internal error"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data any
			if tt.err == nil {
				data = "done"
			}
			if diff := cmp.Diff(tt.want, newAck(id, data, tt.err)); diff != "" {
				t.Errorf("ack mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodePayload(t *testing.T) {
	var p textPayload
	assert.NoError(t, decodePayload(nil, &p))
	assert.NoError(t, decodePayload(json.RawMessage("null"), &p))
	require.NoError(t, decodePayload(json.RawMessage(`{"text":"hi"}`), &p))
	assert.Equal(t, "hi", p.Text)

	err := decodePayload(json.RawMessage(`{"text":`), &p)
	assert.ErrorIs(t, err, game.ErrInvalidInput)
	assert.ErrorIs(t, err, errBadPayload)
}

func TestEncodeFrameFallsBack(t *testing.T) {
	frame := encodeFrame(ServerFrame{Type: "bad", Data: make(chan int)})
	assert.JSONEq(t, fmt.Sprintf(`{"type":%q,"data":{"code":"internal","message":"internal error"}}`, game.EventError), string(frame))
}
