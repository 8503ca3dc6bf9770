package game

import (
	"strings"
	"sync"
	"time"
)

// RoomDeps are the collaborators a room needs to run games.
type RoomDeps struct {
	Catalog  *Catalog
	Selector *Selector
	Rules    Rules
	Clock    func() time.Time
	NewID    func() string
}

// Room represents a networked game room. Players are kept in join order.
type Room struct {
	ID        string
	Code      string
	HostID    string
	Players   []*Player
	Settings  RoomSettings
	Game      *GameState
	CreatedAt time.Time

	deps  RoomDeps
	words WordMemory

	mu sync.RWMutex
}

// NewRoom creates a room whose only member is the host.
func NewRoom(id, code string, host *Player, settings RoomSettings, deps RoomDeps) *Room {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Selector == nil {
		deps.Selector = NewSelector(nil)
	}

	host.IsHost = true
	host.IsReady = true
	host.IsConnected = true

	return &Room{
		ID:        id,
		Code:      code,
		HostID:    host.ID,
		Players:   []*Player{host},
		Settings:  settings,
		CreatedAt: deps.Clock(),
		deps:      deps,
		words:     make(WordMemory),
	}
}

func (r *Room) now() time.Time {
	return r.deps.Clock()
}

func (r *Room) player(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerIDs() []string {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	return ids
}

func (r *Room) connectedIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsConnected {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *Room) isConnected(id string) bool {
	p := r.player(id)
	return p != nil && p.IsConnected
}

// GetPlayer returns a copy of the player, if present.
func (r *Room) GetPlayer(id string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.player(id)
	if p == nil {
		return Player{}, false
	}
	return *p, true
}

// PlayerIDs returns member ids in join order.
func (r *Room) PlayerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playerIDs()
}

// PlayerCount returns the number of members, connected or not.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Players)
}

// ConnectedCount returns the number of connected members.
func (r *Room) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connectedIDs())
}

// InGame reports whether a game is running.
func (r *Room) InGame() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Game != nil
}

// MaxPlayers returns the current capacity.
func (r *Room) MaxPlayers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Settings.MaxPlayers
}

// AddPlayer appends a new member. A player already present is treated as a
// reconnect and marked connected instead.
func (r *Room) AddPlayer(player *Player) (reconnected bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.player(player.ID); existing != nil {
		existing.IsConnected = true
		existing.DisconnectedAt = time.Time{}
		return true, nil
	}
	if len(r.Players) >= r.Settings.MaxPlayers {
		return false, ErrRoomFull
	}
	if r.Game != nil {
		return false, ErrGameAlreadyStarted
	}

	player.IsHost = false
	player.IsReady = false
	player.IsConnected = true
	r.Players = append(r.Players, player)
	return false, nil
}

// RemovePlayer deletes a member and hands the host role to the earliest
// remaining player when needed.
func (r *Room) RemovePlayer(id string) (wasHost, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.Players {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false, len(r.Players) == 0
	}

	wasHost = r.Players[idx].IsHost
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	if len(r.Players) == 0 {
		r.HostID = ""
		return wasHost, true
	}
	if wasHost {
		r.Players[0].IsHost = true
		r.HostID = r.Players[0].ID
	}
	return wasHost, false
}

// SetConnected flips a member's connection flag.
func (r *Room) SetConnected(id string, connected bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.player(id)
	if p == nil {
		return false
	}
	p.IsConnected = connected
	if connected {
		p.DisconnectedAt = time.Time{}
	} else if p.DisconnectedAt.IsZero() {
		p.DisconnectedAt = r.now()
	}
	return true
}

// ExpiredPlayers lists members disconnected for longer than grace.
func (r *Room) ExpiredPlayers(now time.Time, grace time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, p := range r.Players {
		if !p.IsConnected && !p.DisconnectedAt.IsZero() && now.Sub(p.DisconnectedAt) > grace {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// IsStale reports whether the sweep may delete this room: nobody connected,
// or older than maxAge without ever having started a game.
func (r *Room) IsStale(now time.Time, maxAge time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.connectedIDs()) == 0 {
		return true
	}
	return r.Game == nil && now.Sub(r.CreatedAt) > maxAge
}

// SetReady toggles a player's ready flag in the lobby.
func (r *Room) SetReady(playerID string, ready bool) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	p := r.player(playerID)
	if p == nil {
		return o, ErrNotInRoom
	}
	if r.Game != nil {
		return o, ErrGameAlreadyStarted
	}
	p.IsReady = ready
	o.broadcast(EventRoomUpdated, r.view())
	return o, nil
}

// UpdateSettings applies a partial settings change. Host only, lobby only.
func (r *Room) UpdateSettings(playerID string, patch SettingsPatch) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var o Outcome
	if err := r.requireHost(playerID); err != nil {
		return o, err
	}
	if r.Game != nil {
		return o, ErrGameAlreadyStarted
	}

	next := r.Settings
	if patch.MaxPlayers != nil {
		next.MaxPlayers = *patch.MaxPlayers
	}
	if patch.ChatEnabled != nil {
		next.ChatEnabled = *patch.ChatEnabled
	}
	if patch.TimerEnabled != nil {
		next.TimerEnabled = *patch.TimerEnabled
	}
	if patch.TimerDuration != nil {
		next.TimerDuration = *patch.TimerDuration
	}
	if patch.RoundsPerGame != nil {
		next.RoundsPerGame = *patch.RoundsPerGame
	}

	minCap := r.deps.Rules.MinPlayers
	if len(r.Players) > minCap {
		minCap = len(r.Players)
	}
	switch {
	case next.MaxPlayers < minCap || next.MaxPlayers > r.deps.Rules.MaxPlayers:
		return o, ErrInvalidSettings
	case next.TimerDuration < minTimerDuration || next.TimerDuration > maxTimerDuration:
		return o, ErrInvalidSettings
	case next.RoundsPerGame < 1 || next.RoundsPerGame > maxRoundsPerGame:
		return o, ErrInvalidSettings
	}

	r.Settings = next
	o.broadcast(EventRoomUpdated, r.view())
	return o, nil
}

func (r *Room) requireMember(playerID string) (*Player, error) {
	p := r.player(playerID)
	if p == nil {
		return nil, ErrNotInRoom
	}
	return p, nil
}

func (r *Room) requireHost(playerID string) error {
	p, err := r.requireMember(playerID)
	if err != nil {
		return err
	}
	if !p.IsHost {
		return ErrNotHost
	}
	return nil
}

// NormalizeCode upper-cases and trims a user-entered room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
