package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"impostor/internal/game"
	"impostor/internal/store"
)

func TestCreateRoom(t *testing.T) {
	e := newTestEnv(t)
	c := e.attach("p1")

	joined, err := e.h.dispatcher.CreateRoom("p1", "Alice")
	require.NoError(t, err)

	assert.Len(t, joined.Room.Code, 6)
	assert.Equal(t, "p1", joined.Room.HostID)
	assert.Equal(t, "p1", joined.PlayerID)
	require.Len(t, joined.Room.Players, 1)
	assert.True(t, joined.Room.Players[0].IsReady)

	assert.Len(t, ofType(drain(c), game.EventRoomUpdated), 1)
}

func TestJoinRoomBroadcastsToMembers(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 2)
	c3 := e.attach("p3")

	joined, err := e.h.dispatcher.JoinRoom("p3", strings.ToLower(code), "Cara")
	require.NoError(t, err)
	assert.Len(t, joined.Room.Players, 3)

	frames := drain(clients[0])
	joinedFrames := ofType(frames, game.EventPlayerJoined)
	require.Len(t, joinedFrames, 1)
	assert.Contains(t, joinedFrames[0].Raw, `"name":"Cara"`)
	assert.Len(t, ofType(frames, game.EventRoomUpdated), 1)
	assert.NotEmpty(t, ofType(drain(c3), game.EventRoomUpdated))
}

func TestJoinRoomErrors(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.setupRoom(t, 3)

	_, err := e.h.dispatcher.JoinRoom("p9", "ZZZZZZ", "Zed")
	assert.ErrorIs(t, err, game.ErrNotFound)

	_, err = e.h.dispatcher.JoinRoom("p9", code, "   ")
	assert.ErrorIs(t, err, game.ErrInvalidInput)

	_, err = e.h.dispatcher.Handle("p1", IntentStartGame, nil)
	require.NoError(t, err)
	_, err = e.h.dispatcher.JoinRoom("p9", code, "Zed")
	assert.ErrorIs(t, err, game.ErrInvalidPhase)
}

func TestJoiningAnotherRoomLeavesTheFirst(t *testing.T) {
	e := newTestEnv(t)
	codeA, _ := e.setupRoom(t, 1)

	e.attach("p2")
	roomB, err := e.h.dispatcher.CreateRoom("p2", "Bob")
	require.NoError(t, err)

	_, err = e.h.dispatcher.JoinRoom("p2", codeA, "Bob")
	require.NoError(t, err)

	_, err = e.h.store.GetRoom(roomB.Room.Code)
	assert.ErrorIs(t, err, game.ErrNotFound)
	assert.True(t, e.sched.wasCancelled(roomB.Room.ID))
	assert.Equal(t, 2, e.room(t, codeA).PlayerCount())
}

func TestHandleRejectsBadIntents(t *testing.T) {
	e := newTestEnv(t)
	e.setupRoom(t, 2)

	tests := []struct {
		name     string
		playerID string
		intent   string
		payload  string
		want     error
	}{
		{"unknown intent", "p1", "teleport", "", game.ErrInvalidInput},
		{"not in a room", "ghost", IntentStartGame, "", game.ErrNotInRoom},
		{"malformed payload", "p1", IntentChat, `[1,2]`, game.ErrInvalidInput},
		{"non-host start", "p2", IntentStartGame, "", game.ErrUnauthorized},
		{"too few players", "p1", IntentStartGame, "", game.ErrNotEnoughPlayers},
		{"chat in lobby", "p1", IntentChat, `{"text":"hi"}`, game.ErrInvalidPhase},
		{"advance in lobby", "p1", IntentAdvancePhase, "", game.ErrInvalidPhase},
		{"settings out of range", "p1", IntentUpdateSettings, `{"roundsPerGame":99}`, game.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw json.RawMessage
			if tt.payload != "" {
				raw = json.RawMessage(tt.payload)
			}
			_, err := e.h.dispatcher.Handle(tt.playerID, tt.intent, raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLobbyIntents(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 2)

	_, err := e.h.dispatcher.Handle("p2", IntentSetReady, payload(t, map[string]bool{"ready": true}))
	require.NoError(t, err)
	p2, _ := e.room(t, code).GetPlayer("p2")
	assert.True(t, p2.IsReady)

	_, err = e.h.dispatcher.Handle("p1", IntentUpdateSettings, payload(t, map[string]any{"roundsPerGame": 5, "chatEnabled": false}))
	require.NoError(t, err)
	settings := e.room(t, code).Snapshot().Settings
	assert.Equal(t, 5, settings.RoundsPerGame)
	assert.False(t, settings.ChatEnabled)

	assert.Len(t, ofType(drain(clients[1]), game.EventRoomUpdated), 2)
}

// startToHintRound starts a game and fires the automatic timers up to the
// first hint turn.
func startToHintRound(t *testing.T, e *testEnv, code string, clients []*Client) {
	t.Helper()
	_, err := e.h.dispatcher.Handle("p1", IntentStartGame, nil)
	require.NoError(t, err)
	for e.phase(t, code) != game.PhaseHintRound {
		require.True(t, e.sched.fireNext(e.key(t, code)), "ran out of timers in %s", e.phase(t, code))
	}
	for _, c := range clients {
		drain(c)
	}
}

func TestTimersDriveTheRound(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 3)

	_, err := e.h.dispatcher.Handle("p1", IntentStartGame, nil)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseSpinningCategory, e.phase(t, code))
	assert.Equal(t, 1, e.sched.Pending(e.key(t, code)))

	require.True(t, e.sched.fireNext(e.key(t, code)))
	assert.Equal(t, game.PhaseSpinningWord, e.phase(t, code))
	require.True(t, e.sched.fireNext(e.key(t, code)))
	assert.Equal(t, game.PhaseRoleReveal, e.phase(t, code))

	impostors := 0
	var word string
	for _, c := range clients {
		frames := drain(c)
		roles := ofType(frames, game.EventRoleAssigned)
		require.Len(t, roles, 1, "player %s", c.playerID)

		var role game.RoleAssignment
		require.NoError(t, json.Unmarshal(roles[0].Data, &role))
		if role.IsImpostor {
			impostors++
			assert.Nil(t, role.Word)
			continue
		}
		require.NotNil(t, role.Word)
		if word == "" {
			word = *role.Word
		}
		assert.Equal(t, word, *role.Word)
	}
	assert.Equal(t, 1, impostors)

	require.True(t, e.sched.fireNext(e.key(t, code)))
	assert.Equal(t, game.PhaseHintRound, e.phase(t, code))

	// Countdown ticks reach everyone while the turn timer runs
	e.sched.tick(e.key(t, code))
	for _, c := range clients {
		frames := drain(c)
		updates := ofType(frames, game.EventTimerUpdate)
		require.Len(t, updates, 1)
		var update game.TimerUpdate
		require.NoError(t, json.Unmarshal(updates[0].Data, &update))
		assert.Equal(t, game.PhaseHintRound, update.Phase)
		assert.Equal(t, 120, update.SecondsLeft)

		for _, f := range frames {
			assert.NotContains(t, f.Raw, strconv.Quote(word))
		}
	}
}

func TestHintTurns(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 3)
	startToHintRound(t, e, code, clients)

	turn := e.room(t, code).Snapshot().Game.CurrentTurnPlayerID
	require.NotEmpty(t, turn)

	other := "p1"
	if turn == "p1" {
		other = "p2"
	}
	_, err := e.h.dispatcher.Handle(other, IntentSubmitHint, payload(t, map[string]string{"text": "sweet"}))
	assert.ErrorIs(t, err, game.ErrUnauthorized)

	_, err = e.h.dispatcher.Handle(turn, IntentSubmitHint, payload(t, map[string]string{"text": "sweet"}))
	require.NoError(t, err)

	for _, c := range clients {
		frames := drain(c)
		hints := ofType(frames, game.EventHintReceived)
		require.Len(t, hints, 1)
		assert.Contains(t, hints[0].Raw, `"hint":"sweet"`)
		assert.Len(t, ofType(frames, game.EventTurnChanged), 1)
	}
	assert.NotEqual(t, turn, e.room(t, code).Snapshot().Game.CurrentTurnPlayerID)
}

func TestStaleTimerIsIgnored(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.setupRoom(t, 3)

	_, err := e.h.dispatcher.Handle("p1", IntentStartGame, nil)
	require.NoError(t, err)
	_, err = e.h.dispatcher.Handle("p1", IntentAdvancePhase, nil)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseSpinningWord, e.phase(t, code))

	// the category spin timer is still queued but belongs to a past epoch
	require.True(t, e.sched.fireNext(e.key(t, code)))
	assert.Equal(t, game.PhaseSpinningWord, e.phase(t, code))

	require.True(t, e.sched.fireNext(e.key(t, code)))
	assert.Equal(t, game.PhaseRoleReveal, e.phase(t, code))
}

func TestCountdownStopsWhenPhaseMovesOn(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 3)
	startToHintRound(t, e, code, clients)

	_, err := e.h.dispatcher.Handle("p1", IntentAdvancePhase, nil)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseVoteDecision, e.phase(t, code))
	drain(clients[0])

	e.sched.tick(e.key(t, code))
	updates := ofType(drain(clients[0]), game.EventTimerUpdate)
	require.Len(t, updates, 1)
	var update game.TimerUpdate
	require.NoError(t, json.Unmarshal(updates[0].Data, &update))
	assert.Equal(t, game.PhaseVoteDecision, update.Phase)
}

func TestDecisionVotingAndChat(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 3)
	startToHintRound(t, e, code, clients)

	_, err := e.h.dispatcher.Handle("p1", IntentAdvancePhase, nil)
	require.NoError(t, err)

	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := e.h.dispatcher.Handle(id, IntentVoteDecision, payload(t, map[string]string{"choice": "vote"}))
		require.NoError(t, err)
	}
	require.Equal(t, game.PhaseVoting, e.phase(t, code))

	room := e.room(t, code)
	var impostor, word string
	for _, id := range []string{"p1", "p2", "p3"} {
		role, ok := room.RoleFor(id)
		require.True(t, ok)
		if role.IsImpostor {
			impostor = id
		} else {
			word = *role.Word
		}
	}
	require.NotEmpty(t, impostor)

	for _, c := range clients {
		drain(c)
	}
	_, err = e.h.dispatcher.Handle("p2", IntentChat, payload(t, map[string]string{"text": "surely it is " + word}))
	require.NoError(t, err)
	chat := ofType(drain(clients[0]), game.EventChatMessage)
	require.Len(t, chat, 1)
	assert.Contains(t, chat[0].Raw, game.MaskToken)
	assert.NotContains(t, chat[0].Raw, word)

	for _, id := range []string{"p1", "p2", "p3"} {
		target := impostor
		if id == impostor {
			target = "p1"
			if impostor == "p1" {
				target = "p2"
			}
		}
		_, err := e.h.dispatcher.Handle(id, IntentVote, payload(t, map[string]string{"targetId": target}))
		require.NoError(t, err)
	}

	assert.Equal(t, game.PhaseVoteResults, e.phase(t, code))
	results := ofType(drain(clients[1]), game.EventResults)
	require.Len(t, results, 1)
	var res game.RoundResults
	require.NoError(t, json.Unmarshal(results[0].Data, &res))
	assert.True(t, res.ImpostorCaught)
	assert.Equal(t, impostor, res.ImpostorID)
	assert.Equal(t, word, res.Word)
}

func TestLeaveRoom(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 3)
	id := e.key(t, code)

	require.NoError(t, e.h.dispatcher.LeaveRoom("p1"))

	left := ofType(drain(clients[1]), game.EventPlayerLeft)
	require.Len(t, left, 1)
	var data PlayerLeft
	require.NoError(t, json.Unmarshal(left[0].Data, &data))
	assert.Equal(t, PlayerLeft{PlayerID: "p1", HostID: "p2"}, data)
	assert.False(t, e.sched.wasCancelled(id))

	assert.ErrorIs(t, e.h.dispatcher.LeaveRoom("p1"), game.ErrNotInRoom)

	require.NoError(t, e.h.dispatcher.LeaveRoom("p2"))
	require.NoError(t, e.h.dispatcher.LeaveRoom("p3"))
	_, err := e.h.store.GetRoom(code)
	assert.ErrorIs(t, err, game.ErrNotFound)
	assert.True(t, e.sched.wasCancelled(id))
}

func TestImpostorLeavingForfeitsRound(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 4)
	startToHintRound(t, e, code, clients)

	room := e.room(t, code)
	var impostor string
	for _, c := range clients {
		if role, ok := room.RoleFor(c.playerID); ok && role.IsImpostor {
			impostor = c.playerID
		}
	}
	require.NotEmpty(t, impostor)

	require.NoError(t, e.h.dispatcher.LeaveRoom(impostor))

	for _, c := range clients {
		if c.playerID == impostor {
			continue
		}
		results := ofType(drain(c), game.EventResults)
		require.Len(t, results, 1)
		var res game.RoundResults
		require.NoError(t, json.Unmarshal(results[0].Data, &res))
		assert.True(t, res.Forfeited)
	}
}

func TestReconnectResendsRole(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 3)
	startToHintRound(t, e, code, clients)

	e.h.hub.Unregister(clients[1])
	e.h.dispatcher.Disconnected("p2")

	updates := ofType(drain(clients[0]), game.EventRoomUpdated)
	require.NotEmpty(t, updates)
	var view game.RoomView
	require.NoError(t, json.Unmarshal(updates[len(updates)-1].Data, &view))
	for _, p := range view.Players {
		assert.Equal(t, p.ID != "p2", p.IsConnected, "player %s", p.ID)
	}

	fresh := e.attach("p2")
	e.h.dispatcher.Connected("p2")

	frames := drain(fresh)
	assert.NotEmpty(t, ofType(frames, game.EventRoomUpdated))
	assert.Len(t, ofType(frames, game.EventRoleAssigned), 1)
	p2, _ := e.room(t, code).GetPlayer("p2")
	assert.True(t, p2.IsConnected)
}

func TestSweepPrunesExpiredPlayers(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 3)

	e.h.hub.Unregister(clients[2])
	e.h.dispatcher.Disconnected("p3")
	drain(clients[0])

	e.clock.Advance(e.cfg.Game.DisconnectGrace + time.Second)
	report := e.h.store.CleanupStaleRooms()
	require.Len(t, report.PrunedPlayers, 1)

	e.h.OnSweep(report)

	left := ofType(drain(clients[0]), game.EventPlayerLeft)
	require.Len(t, left, 1)
	assert.Contains(t, left[0].Raw, `"playerId":"p3"`)
	assert.Equal(t, 2, e.room(t, code).PlayerCount())
}

func TestSweepClosesAbandonedRoom(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 2)
	id := e.key(t, code)
	events := e.h.eventBus.Subscribe(code)
	defer e.h.eventBus.Unsubscribe(code, events)

	for _, c := range clients {
		e.h.hub.Unregister(c)
		e.h.dispatcher.Disconnected(c.playerID)
	}
	for len(events) > 0 {
		<-events
	}

	report := e.h.store.CleanupStaleRooms()
	require.Len(t, report.RemovedRooms, 1)
	assert.Equal(t, code, report.RemovedRooms[0].Code)
	e.h.OnSweep(report)

	assert.True(t, e.sched.wasCancelled(id))
	select {
	case ev := <-events:
		assert.Equal(t, game.EventPlayerLeft, ev.Type)
	default:
		t.Fatal("watchers were not told the room closed")
	}
}

func TestTimerForDeletedRoomIsDropped(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.setupRoom(t, 3)
	room := e.room(t, code)

	_, err := e.h.dispatcher.Handle("p1", IntentStartGame, nil)
	require.NoError(t, err)
	pending := game.Timer{Phase: game.PhaseSpinningCategory, Epoch: 1}

	// Empty the room behind the dispatcher's back so the game survives on
	// the detached room
	for _, id := range []string{"p1", "p2", "p3"} {
		_, err := e.h.store.LeaveRoom(id)
		require.NoError(t, err)
	}

	e.h.dispatcher.fire(room, pending)
	assert.False(t, e.h.dispatcher.tick(room, pending))
	assert.Equal(t, game.PhaseSpinningCategory, room.Snapshot().Game.Phase)
}

func TestClosingRoomCancelsTimers(t *testing.T) {
	sched := &mockScheduler{}
	e := newTestEnvWith(t, sched)
	e.attach("p1")

	joined, err := e.h.dispatcher.CreateRoom("p1", "Alice")
	require.NoError(t, err)

	sched.On("Cancel", joined.Room.ID).Return().Once()
	require.NoError(t, e.h.dispatcher.LeaveRoom("p1"))

	sched.AssertExpectations(t)
	sched.AssertNotCalled(t, "After", mock.Anything, mock.Anything)
}

func (d *Dispatcher) lockCount() int {
	d.locksMu.Lock()
	defer d.locksMu.Unlock()
	return len(d.locks)
}

func TestFailedJoinsLeaveNoLocks(t *testing.T) {
	e := newTestEnv(t)
	e.attach("stranger")

	for i := 0; i < 1000; i++ {
		_, err := e.h.dispatcher.JoinRoom("stranger", fmt.Sprintf("NOPE%04d", i), "Mallory")
		require.ErrorIs(t, err, game.ErrNotFound)
	}
	assert.Equal(t, 0, e.h.store.RoomCount())
	assert.Equal(t, 0, e.h.dispatcher.lockCount())
}

func TestLocksAreReleasedAfterUse(t *testing.T) {
	e := newTestEnv(t)
	code, clients := e.setupRoom(t, 3)
	startToHintRound(t, e, code, clients)

	_, err := e.h.dispatcher.Handle("p1", IntentAdvancePhase, nil)
	require.NoError(t, err)
	e.sched.tick(e.key(t, code))
	assert.Equal(t, 0, e.h.dispatcher.lockCount())

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, e.h.dispatcher.LeaveRoom(id))
	}
	assert.Equal(t, 0, e.h.dispatcher.lockCount())
}

func TestClosingOldRoomSparesReusedCode(t *testing.T) {
	e := newTestEnv(t)
	code, _ := e.setupRoom(t, 3)
	live := e.key(t, code)

	_, err := e.h.dispatcher.Handle("p1", IntentStartGame, nil)
	require.NoError(t, err)
	require.Equal(t, 1, e.sched.Pending(live))

	// a room swept earlier under the same code
	old := game.NewRoom("old-room", code, game.NewPlayer("gone", "Gone", e.clock.Now()), e.cfg.RoomSettings(), game.RoomDeps{})
	e.h.OnSweep(store.CleanupReport{RemovedRooms: []*game.Room{old}})

	assert.True(t, e.sched.wasCancelled("old-room"))
	assert.False(t, e.sched.wasCancelled(live))
	require.True(t, e.sched.fireNext(live))
	assert.Equal(t, game.PhaseSpinningWord, e.phase(t, code))
}
