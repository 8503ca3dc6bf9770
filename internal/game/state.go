package game

import (
	"time"
)

// Phase is the networked game phase
type Phase string

const (
	PhaseLobby            Phase = "lobby"
	PhaseSpinningCategory Phase = "spinning_category"
	PhaseSpinningWord     Phase = "spinning_word"
	PhaseRoleReveal       Phase = "role_reveal"
	PhaseHintRound        Phase = "hint_round"
	PhaseVoteDecision     Phase = "vote_decision"
	PhaseVoting           Phase = "voting"
	PhaseVoteResults      Phase = "vote_results"
	PhaseGameResults      Phase = "game_results"
)

// roundInProgress reports whether roles are out and the round is unresolved.
func (p Phase) roundInProgress() bool {
	switch p {
	case PhaseRoleReveal, PhaseHintRound, PhaseVoteDecision, PhaseVoting:
		return true
	}
	return false
}

// Decision is a vote_decision ballot
type Decision string

const (
	DecisionVote     Decision = "vote"
	DecisionContinue Decision = "continue"
)

// Valid reports whether d is one of the two known choices.
func (d Decision) Valid() bool {
	return d == DecisionVote || d == DecisionContinue
}

// HintEntry is one clue given during a hint round
type HintEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Hint       string `json:"hint"`
	Round      int    `json:"round"`
}

// ChatMessage is a redacted chat line sent during voting
type ChatMessage struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// GameState is the per-room game owned by the state machine
type GameState struct {
	Phase Phase
	// Epoch increments on every phase entry and every hint turn change.
	// Timers carry the epoch they were scheduled for.
	Epoch int

	CurrentRound int
	TotalRounds  int

	Category   *Category
	Word       string
	ImpostorID string

	Votes       map[string]string
	RoundScores map[string]int
	TotalScores map[string]int

	ChatMessages []ChatMessage
	TimerEndsAt  time.Time

	LastCategoryID string
	LastWord       string

	HintRound        int
	Hints            []HintEntry
	TurnOrder        []string
	CurrentTurnIndex int
	DecisionVotes    map[string]Decision

	ImpostorForfeited bool
	Results           *RoundResults

	redactor *Redactor
}

// mask returns the redactor for the current word, rebuilt when the word
// changes.
func (g *GameState) mask() *Redactor {
	if g.redactor == nil || g.redactor.word != g.Word {
		g.redactor = NewRedactor(g.Word)
	}
	return g.redactor
}

// CurrentTurnPlayerID returns "" once the hint round is exhausted.
func (g *GameState) CurrentTurnPlayerID() string {
	if g.CurrentTurnIndex < 0 || g.CurrentTurnIndex >= len(g.TurnOrder) {
		return ""
	}
	return g.TurnOrder[g.CurrentTurnIndex]
}

// resetRound clears per-round transient fields.
func (g *GameState) resetRound() {
	g.Category = nil
	g.Word = ""
	g.ImpostorID = ""
	g.Votes = make(map[string]string)
	g.RoundScores = make(map[string]int)
	g.ChatMessages = nil
	g.TimerEndsAt = time.Time{}
	g.HintRound = 0
	g.Hints = nil
	g.CurrentTurnIndex = 0
	g.DecisionVotes = make(map[string]Decision)
	g.ImpostorForfeited = false
	g.Results = nil
}
