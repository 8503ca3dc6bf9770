package handlers

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"impostor/internal/game"
	"impostor/internal/scheduler"
	"impostor/internal/store"
)

// Dispatcher turns intents into state machine calls and delivers what they
// produce: events to players and watchers, timers to the scheduler. Work on
// one room is serialised so its events go out in order.
type Dispatcher struct {
	store *store.MemoryStore
	hub   *Hub
	bus   *EventBus
	sched scheduler.Scheduler

	locksMu sync.Mutex
	locks   map[string]*roomLock
}

// roomLock serialises work on one room. An entry lives only while someone
// holds or waits for it.
type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(s *store.MemoryStore, hub *Hub, bus *EventBus, sched scheduler.Scheduler) *Dispatcher {
	return &Dispatcher{
		store: s,
		hub:   hub,
		bus:   bus,
		sched: sched,
		locks: make(map[string]*roomLock),
	}
}

// lock takes the mutex for a room. Rooms are keyed by id since codes are
// reused once a room is gone.
func (d *Dispatcher) lock(room *game.Room) func() {
	d.locksMu.Lock()
	l, ok := d.locks[room.ID]
	if !ok {
		l = &roomLock{}
		d.locks[room.ID] = l
	}
	l.refs++
	d.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		d.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, room.ID)
		}
		d.locksMu.Unlock()
	}
}

// Handle runs one intent for a player and returns the ack data.
func (d *Dispatcher) Handle(playerID, intent string, payload json.RawMessage) (any, error) {
	switch intent {
	case IntentCreateRoom:
		var p namePayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return d.CreateRoom(playerID, p.Name)
	case IntentJoinRoom:
		var p joinPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return d.JoinRoom(playerID, p.Code, p.Name)
	case IntentLeaveRoom:
		return nil, d.LeaveRoom(playerID)
	}

	op, err := roomOp(intent, payload)
	if err != nil {
		return nil, err
	}
	return nil, d.withRoom(playerID, op)
}

// roomOp binds an in-room intent to its state machine call.
func roomOp(intent string, payload json.RawMessage) (func(r *game.Room, playerID string) (game.Outcome, error), error) {
	switch intent {
	case IntentUpdateSettings:
		var patch game.SettingsPatch
		if err := decodePayload(payload, &patch); err != nil {
			return nil, err
		}
		return func(r *game.Room, id string) (game.Outcome, error) { return r.UpdateSettings(id, patch) }, nil
	case IntentSetReady:
		var p readyPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return func(r *game.Room, id string) (game.Outcome, error) { return r.SetReady(id, p.Ready) }, nil
	case IntentStartGame:
		return (*game.Room).StartGame, nil
	case IntentSubmitHint:
		var p textPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return func(r *game.Room, id string) (game.Outcome, error) { return r.SubmitHint(id, p.Text) }, nil
	case IntentVoteDecision:
		var p choicePayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return func(r *game.Room, id string) (game.Outcome, error) { return r.SubmitDecision(id, p.Choice) }, nil
	case IntentVote:
		var p targetPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return func(r *game.Room, id string) (game.Outcome, error) { return r.CastVote(id, p.TargetID) }, nil
	case IntentChat:
		var p textPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return func(r *game.Room, id string) (game.Outcome, error) { return r.Chat(id, p.Text) }, nil
	case IntentAdvancePhase:
		return (*game.Room).Advance, nil
	}
	return nil, fmt.Errorf("%w: unknown intent %q", game.ErrInvalidInput, intent)
}

func (d *Dispatcher) withRoom(playerID string, op func(r *game.Room, playerID string) (game.Outcome, error)) error {
	room, err := d.store.GetRoomByPlayer(playerID)
	if err != nil {
		return game.ErrNotInRoom
	}
	unlock := d.lock(room)
	defer unlock()

	o, err := op(room, playerID)
	if err != nil {
		return err
	}
	d.apply(room, o)
	return nil
}

// CreateRoom opens a room with the player as host. A player still sitting
// in another room leaves it first.
func (d *Dispatcher) CreateRoom(playerID, name string) (RoomJoined, error) {
	if _, err := d.store.GetRoomByPlayer(playerID); err == nil {
		if err := d.LeaveRoom(playerID); err != nil {
			return RoomJoined{}, err
		}
	}

	room, err := d.store.CreateRoom(playerID, name)
	if err != nil {
		return RoomJoined{}, err
	}
	unlock := d.lock(room)
	defer unlock()

	d.sendRoom(room)
	return RoomJoined{Room: room.Snapshot(), PlayerID: playerID}, nil
}

// JoinRoom seats the player in the room with code, or resumes their seat.
// Unknown codes fail before anything is locked.
func (d *Dispatcher) JoinRoom(playerID, code, name string) (RoomJoined, error) {
	code = game.NormalizeCode(code)
	target, err := d.store.GetRoom(code)
	if err != nil {
		return RoomJoined{}, err
	}
	if current, err := d.store.GetRoomByPlayer(playerID); err == nil && current != target {
		if err := d.LeaveRoom(playerID); err != nil {
			return RoomJoined{}, err
		}
	}

	unlock := d.lock(target)
	defer unlock()

	if !d.live(target) {
		return RoomJoined{}, game.ErrNotFound
	}
	room, reconnected, err := d.store.JoinRoom(code, playerID, name)
	if err != nil {
		return RoomJoined{}, err
	}

	if reconnected {
		d.apply(room, room.Reconcile())
		d.sendRole(room, playerID)
	} else if p, ok := room.GetPlayer(playerID); ok {
		d.broadcast(room, game.Event{Type: game.EventPlayerJoined, Data: p})
	}
	d.sendRoom(room)
	return RoomJoined{Room: room.Snapshot(), PlayerID: playerID}, nil
}

// LeaveRoom removes the player from their room.
func (d *Dispatcher) LeaveRoom(playerID string) error {
	room, err := d.store.GetRoomByPlayer(playerID)
	if err != nil {
		return game.ErrNotInRoom
	}
	unlock := d.lock(room)
	defer unlock()

	res, err := d.store.LeaveRoom(playerID)
	if err != nil {
		return err
	}
	if res.Deleted || res.Room == nil {
		d.closeRoom(room)
		return nil
	}

	d.broadcast(res.Room, game.Event{
		Type: game.EventPlayerLeft,
		Data: PlayerLeft{PlayerID: playerID, HostID: res.Room.Snapshot().HostID},
	})
	d.apply(res.Room, res.Room.Reconcile())
	d.sendRoom(res.Room)
	return nil
}

// Connected runs when a player's websocket opens. A player with a seat gets
// it back along with the current snapshot and, mid-round, their role.
func (d *Dispatcher) Connected(playerID string) {
	room, err := d.store.GetRoomByPlayer(playerID)
	if err != nil {
		return
	}
	unlock := d.lock(room)
	defer unlock()

	if _, changed := d.store.ReconnectPlayer(playerID); changed {
		log.Info().Str("room", room.Code).Str("player", playerID).Msg("player reconnected")
		d.apply(room, room.Reconcile())
	}
	d.sendRoom(room)
	d.sendRole(room, playerID)
}

// Disconnected runs when a player's last websocket closes. The seat is kept
// until the sweep's grace period runs out.
func (d *Dispatcher) Disconnected(playerID string) {
	room, err := d.store.GetRoomByPlayer(playerID)
	if err != nil {
		return
	}
	unlock := d.lock(room)
	defer unlock()

	if _, changed := d.store.DisconnectPlayer(playerID); !changed {
		return
	}
	log.Info().Str("room", room.Code).Str("player", playerID).Msg("player disconnected")
	d.apply(room, room.Reconcile())
	d.sendRoom(room)
}

// OnSweep delivers the consequences of a registry sweep.
func (d *Dispatcher) OnSweep(report store.CleanupReport) {
	for _, room := range report.RemovedRooms {
		d.closeRoom(room)
	}

	for _, room := range report.Affected {
		func() {
			unlock := d.lock(room)
			defer unlock()

			host := room.Snapshot().HostID
			for _, p := range report.PrunedPlayers {
				if p.Code == room.Code {
					d.broadcast(room, game.Event{
						Type: game.EventPlayerLeft,
						Data: PlayerLeft{PlayerID: p.PlayerID, HostID: host},
					})
				}
			}
			d.apply(room, room.Reconcile())
			d.sendRoom(room)
		}()
	}
}

// apply delivers an outcome.
func (d *Dispatcher) apply(room *game.Room, o game.Outcome) {
	for _, e := range o.Events {
		if e.Public() {
			d.broadcast(room, e)
		} else {
			d.hub.Send(e.To, encodeFrame(ServerFrame{Type: string(e.Type), Data: e.Data}))
		}
	}
	for _, t := range o.Timers {
		d.arm(room, t)
	}
}

func (d *Dispatcher) broadcast(room *game.Room, e game.Event) {
	frame := encodeFrame(ServerFrame{Type: string(e.Type), Data: e.Data})
	for _, id := range room.PlayerIDs() {
		d.hub.Send(id, frame)
	}
	d.bus.Publish(Event{Type: e.Type, RoomCode: room.Code, Data: e.Data})
}

func (d *Dispatcher) sendRoom(room *game.Room) {
	d.broadcast(room, game.Event{Type: game.EventRoomUpdated, Data: room.Snapshot()})
}

func (d *Dispatcher) sendRole(room *game.Room, playerID string) {
	if role, ok := room.RoleFor(playerID); ok {
		d.hub.Send(playerID, encodeFrame(ServerFrame{Type: string(game.EventRoleAssigned), Data: role}))
	}
}

// closeRoom cancels a deleted room's timers and tells its watchers.
func (d *Dispatcher) closeRoom(room *game.Room) {
	if d.sched != nil {
		d.sched.Cancel(room.ID)
	}
	d.bus.Publish(Event{Type: game.EventPlayerLeft, RoomCode: room.Code})
}

// live reports whether room is still the registered room for its code. A
// code can be reused by a new room after the old one is deleted.
func (d *Dispatcher) live(room *game.Room) bool {
	current, err := d.store.GetRoom(room.Code)
	return err == nil && current == room
}

func (d *Dispatcher) arm(room *game.Room, t game.Timer) {
	if d.sched == nil {
		return
	}
	d.sched.After(room.ID, t.After, func() { d.fire(room, t) })
	if t.Countdown {
		d.sched.Every(room.ID, time.Second, func() bool { return d.tick(room, t) })
	}
}

// fire runs an expired timer. Stale timers are dropped by the room.
func (d *Dispatcher) fire(room *game.Room, t game.Timer) {
	unlock := d.lock(room)
	defer unlock()

	if !d.live(room) {
		return
	}
	o := room.HandleTimer(t)
	if o.Empty() {
		log.Debug().Str("room", room.Code).Str("phase", string(t.Phase)).Msg("stale timer ignored")
		return
	}
	d.apply(room, o)
}

// tick emits one timer-update and reports whether to keep ticking.
func (d *Dispatcher) tick(room *game.Room, t game.Timer) bool {
	unlock := d.lock(room)
	defer unlock()

	if !d.live(room) {
		return false
	}
	update, ok := room.Countdown(t)
	if !ok {
		return false
	}
	d.broadcast(room, game.Event{Type: game.EventTimerUpdate, Data: update})
	return update.SecondsLeft > 0
}
