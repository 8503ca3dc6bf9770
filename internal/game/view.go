package game

import (
	"time"
)

// RoomView is the public room snapshot broadcast as room-updated. It never
// contains the secret word, and names the impostor only once the round has
// been resolved.
type RoomView struct {
	ID        string       `json:"id"`
	Code      string       `json:"code"`
	HostID    string       `json:"hostId"`
	Players   []Player     `json:"players"`
	Settings  RoomSettings `json:"settings"`
	Game      *GameView    `json:"gameState"`
	CreatedAt time.Time    `json:"createdAt"`
}

// GameView is the public part of GameState.
type GameView struct {
	Phase               Phase            `json:"phase"`
	CurrentRound        int              `json:"currentRound"`
	TotalRounds         int              `json:"totalRounds"`
	Category            *CategorySummary `json:"category,omitempty"`
	HintRound           int              `json:"hintRound"`
	Hints               []HintEntry      `json:"hints"`
	TurnOrder           []string         `json:"turnOrder"`
	CurrentTurnPlayerID string           `json:"currentTurnPlayerId,omitempty"`
	TimerEndsAt         *time.Time       `json:"timerEndsAt,omitempty"`
	Decided             []string         `json:"decided"`
	Voted               []string         `json:"voted"`
	ChatMessages        []ChatMessage    `json:"chatMessages"`
	TotalScores         map[string]int   `json:"totalScores"`
	Results             *RoundResults    `json:"results,omitempty"`
}

// Snapshot returns the public room view.
func (r *Room) Snapshot() RoomView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view()
}

func (r *Room) view() RoomView {
	players := make([]Player, len(r.Players))
	for i, p := range r.Players {
		players[i] = *p
	}

	v := RoomView{
		ID:        r.ID,
		Code:      r.Code,
		HostID:    r.HostID,
		Players:   players,
		Settings:  r.Settings,
		CreatedAt: r.CreatedAt,
	}
	if r.Game != nil {
		v.Game = r.Game.view()
	}
	return v
}

func (g *GameState) view() *GameView {
	v := &GameView{
		Phase:               g.Phase,
		CurrentRound:        g.CurrentRound,
		TotalRounds:         g.TotalRounds,
		HintRound:           g.HintRound,
		Hints:               append([]HintEntry(nil), g.Hints...),
		TurnOrder:           append([]string(nil), g.TurnOrder...),
		CurrentTurnPlayerID: g.CurrentTurnPlayerID(),
		ChatMessages:        append([]ChatMessage(nil), g.ChatMessages...),
		TotalScores:         copyScores(g.TotalScores),
		Results:             g.Results,
	}
	if g.Category != nil && g.Phase != PhaseSpinningCategory {
		s := g.Category.Summary()
		v.Category = &s
	}
	if !g.TimerEndsAt.IsZero() {
		t := g.TimerEndsAt
		v.TimerEndsAt = &t
	}
	for id := range g.DecisionVotes {
		v.Decided = append(v.Decided, id)
	}
	for id := range g.Votes {
		v.Voted = append(v.Voted, id)
	}
	return v
}

// RoleFor returns the private role payload for a player once roles have been
// dealt in the current round.
func (r *Room) RoleFor(playerID string) (RoleAssignment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.Game == nil || r.Game.ImpostorID == "" || r.Game.Category == nil || r.player(playerID) == nil {
		return RoleAssignment{}, false
	}
	return r.Game.roleFor(playerID), true
}

func (g *GameState) roleFor(playerID string) RoleAssignment {
	ra := RoleAssignment{
		Round:      g.CurrentRound,
		IsImpostor: playerID == g.ImpostorID,
		Category:   g.Category.Summary(),
	}
	if !ra.IsImpostor {
		w := g.Word
		ra.Word = &w
	}
	return ra
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
