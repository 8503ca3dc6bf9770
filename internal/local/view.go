package local

import (
	"time"

	"impostor/internal/game"
)

// View is the session as shown on the shared screen. Roles and the word stay
// hidden until the game is over.
type View struct {
	SessionID           string                `json:"sessionId"`
	Phase               Phase                 `json:"phase"`
	Players             []Player              `json:"players"`
	Settings            Settings              `json:"settings"`
	Category            *game.CategorySummary `json:"category"`
	Word                *string               `json:"word"`
	ImpostorIDs         []string              `json:"impostorIds"`
	CurrentPlayerIndex  int                   `json:"currentPlayerIndex"`
	CurrentVoterIndex   int                   `json:"currentVoterIndex"`
	VoteCount           int                   `json:"voteCount"`
	EliminatedThisRound *Elimination          `json:"eliminatedThisRound"`
	RoundNumber         int                   `json:"roundNumber"`
	Winner              Winner                `json:"winner,omitempty"`
	TimerEndsAt         *time.Time            `json:"timerEndsAt"`
}

// Elimination describes who left in the last vote.
type Elimination struct {
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	WasImpostor bool   `json:"wasImpostor"`
}

// RoleInfo is shown privately to the player currently holding the device.
type RoleInfo struct {
	PlayerID   string                `json:"playerId"`
	PlayerName string                `json:"playerName"`
	IsImpostor bool                  `json:"isImpostor"`
	Word       *string               `json:"word"`
	Category   *game.CategorySummary `json:"category"`
}

// Target is a player who can receive a vote.
type Target struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VoterInfo describes the current ballot.
type VoterInfo struct {
	VoterID   string   `json:"voterId"`
	VoterName string   `json:"voterName"`
	Targets   []Target `json:"targets"`
}

// Snapshot returns the shared-screen view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	over := s.Phase == PhaseGameResult
	v := View{
		SessionID:          s.ID,
		Phase:              s.Phase,
		Players:            make([]Player, len(s.Players)),
		Settings:           s.Settings,
		CurrentPlayerIndex: s.CurrentPlayerIndex,
		CurrentVoterIndex:  s.CurrentVoterIndex,
		VoteCount:          len(s.Votes),
		RoundNumber:        s.RoundNumber,
		Winner:             s.Winner,
		ImpostorIDs:        []string{},
	}
	for i, p := range s.Players {
		v.Players[i] = *p
		if !over {
			v.Players[i].IsImpostor = false
		}
	}
	if s.Category != nil {
		c := s.publicCategory()
		v.Category = &c
	}
	if over {
		w := s.Word
		v.Word = &w
		v.ImpostorIDs = append(v.ImpostorIDs, s.ImpostorIDs...)
		if s.Settings.RandomMode && s.Category != nil {
			c := s.Category.Summary()
			v.Category = &c
		}
	}
	if p := s.player(s.EliminatedThisRound); p != nil {
		v.EliminatedThisRound = &Elimination{PlayerID: p.ID, PlayerName: p.Name, WasImpostor: p.IsImpostor}
	}
	if !s.TimerEndsAt.IsZero() {
		t := s.TimerEndsAt
		v.TimerEndsAt = &t
	}
	return v
}

func (s *Session) publicCategory() game.CategorySummary {
	if s.Settings.RandomMode {
		return RandomCategory
	}
	return s.Category.Summary()
}

// RoleInfo returns the current device holder's role. Only valid while a role
// is on screen.
func (s *Session) RoleInfo() (RoleInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Phase != PhaseReveal || s.CurrentPlayerIndex >= len(s.Players) {
		return RoleInfo{}, game.ErrInvalidPhase
	}
	p := s.Players[s.CurrentPlayerIndex]
	info := RoleInfo{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		IsImpostor: p.IsImpostor,
	}
	if !p.IsImpostor {
		w := s.Word
		info.Word = &w
	}
	// hideCategory only ever hides from impostors; random mode masks for all.
	if !(p.IsImpostor && s.Settings.HideCategory) {
		c := s.publicCategory()
		info.Category = &c
	}
	return info, nil
}

// Voter returns the current voter and the players they may vote for.
func (s *Session) Voter() (VoterInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if (s.Phase != PhasePassVote && s.Phase != PhaseVote) || s.CurrentVoterIndex >= len(s.Players) {
		return VoterInfo{}, game.ErrInvalidPhase
	}
	voter := s.Players[s.CurrentVoterIndex]
	info := VoterInfo{VoterID: voter.ID, VoterName: voter.Name, Targets: []Target{}}
	for _, p := range s.Players {
		if p.IsEliminated || p.ID == voter.ID {
			continue
		}
		info.Targets = append(info.Targets, Target{ID: p.ID, Name: p.Name})
	}
	return info, nil
}
