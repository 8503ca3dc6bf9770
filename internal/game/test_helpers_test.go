package game

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testCategories() []Category {
	return []Category{
		{ID: "fruits", Name: "Fruits", Icon: "🍎", Words: []string{"Apple", "Banana", "Cherry", "Mango", "Papaya", "Kiwi", "Peach", "Plum"}},
		{ID: "animals", Name: "Animals", Icon: "🐾", Words: []string{"Tiger", "Giraffe", "Penguin", "Dolphin", "Rabbit", "Falcon", "Otter", "Badger"}},
	}
}

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalogFromCategories(testCategories())
	require.NoError(t, err)
	return c
}

// newTestRoom builds a room with n players p1..pn, p1 hosting.
func newTestRoom(t *testing.T, n int) (*Room, *fakeClock) {
	t.Helper()
	return newTestRoomWithRules(t, n, DefaultRules())
}

func newTestRoomWithRules(t *testing.T, n int, rules Rules) (*Room, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ids := 0
	deps := RoomDeps{
		Catalog:  testCatalog(t),
		Selector: NewSelector(rand.NewSource(42)),
		Rules:    rules,
		Clock:    clock.Now,
		NewID: func() string {
			ids++
			return fmt.Sprintf("msg-%d", ids)
		},
	}

	host := NewPlayer("p1", "Player1", clock.now)
	r := NewRoom("room-1", "ABCDEF", host, DefaultRoomSettings(), deps)
	for i := 2; i <= n; i++ {
		_, err := r.AddPlayer(NewPlayer(fmt.Sprintf("p%d", i), fmt.Sprintf("Player%d", i), clock.now))
		require.NoError(t, err)
	}
	return r, clock
}

// driveTo starts a game and uses host advances until the room reaches phase.
func driveTo(t *testing.T, r *Room, phase Phase) {
	t.Helper()
	if r.Game == nil {
		_, err := r.StartGame(r.HostID)
		require.NoError(t, err)
	}
	for i := 0; i < 20 && r.Game.Phase != phase; i++ {
		_, err := r.Advance(r.HostID)
		require.NoError(t, err)
	}
	require.Equal(t, phase, r.Game.Phase)
}

func lastTimer(t *testing.T, o Outcome) Timer {
	t.Helper()
	require.NotEmpty(t, o.Timers, "expected a scheduled timer")
	return o.Timers[len(o.Timers)-1]
}

func eventsOfType(o Outcome, typ EventType) []Event {
	var out []Event
	for _, e := range o.Events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
