package game

import (
	"time"
)

// EventType names a server-to-client event
type EventType string

const (
	EventRoomUpdated      EventType = "room-updated"
	EventPlayerJoined     EventType = "player-joined"
	EventPlayerLeft       EventType = "player-left"
	EventPhaseChanged     EventType = "phase-changed"
	EventRoleAssigned     EventType = "role-assigned"
	EventHintReceived     EventType = "hint-received"
	EventTurnChanged      EventType = "turn-changed"
	EventDecisionReceived EventType = "decision-received"
	EventVoteReceived     EventType = "vote-received"
	EventChatMessage      EventType = "chat-message"
	EventTimerUpdate      EventType = "timer-update"
	EventResults          EventType = "results"
	EventError            EventType = "error"
)

// Event is something the dispatch layer must deliver. An empty To means the
// whole room; otherwise only that player receives it.
type Event struct {
	Type EventType `json:"type"`
	To   string    `json:"-"`
	Data any       `json:"data,omitempty"`
}

// Public reports whether the event is addressed to the whole room.
func (e Event) Public() bool {
	return e.To == ""
}

// Timer asks the dispatch layer to call back after a delay. The callback is
// only honoured while the room is still in Phase at Epoch.
type Timer struct {
	Phase Phase
	Epoch int
	After time.Duration
	// Countdown requests per-second timer-update ticks until the deadline.
	Countdown bool
}

// Outcome is everything a state-machine operation produced.
type Outcome struct {
	Events []Event
	Timers []Timer
}

// Empty reports whether nothing happened.
func (o Outcome) Empty() bool {
	return len(o.Events) == 0 && len(o.Timers) == 0
}

func (o *Outcome) broadcast(t EventType, data any) {
	o.Events = append(o.Events, Event{Type: t, Data: data})
}

func (o *Outcome) send(to string, t EventType, data any) {
	o.Events = append(o.Events, Event{Type: t, To: to, Data: data})
}

func (o *Outcome) schedule(t Timer) {
	o.Timers = append(o.Timers, t)
}

// PhaseData is the phase-specific payload of phase-changed. Each variant
// carries only what that phase needs; none carries the word or the impostor
// except ResultsData, which is sent after resolution.
type PhaseData interface {
	phase() Phase
}

// PhaseChange is the phase-changed payload.
type PhaseChange struct {
	Phase Phase     `json:"phase"`
	Data  PhaseData `json:"data"`
}

type LobbyData struct{}

type SpinningCategoryData struct {
	Round       int               `json:"round"`
	TotalRounds int               `json:"totalRounds"`
	Categories  []CategorySummary `json:"categories"`
}

type SpinningWordData struct {
	Category CategorySummary `json:"category"`
}

type RoleRevealData struct {
	Category    CategorySummary `json:"category"`
	TimerEndsAt time.Time       `json:"timerEndsAt"`
}

type HintRoundData struct {
	HintRound           int         `json:"hintRound"`
	Hints               []HintEntry `json:"hints"`
	TurnOrder           []string    `json:"turnOrder"`
	CurrentTurnPlayerID string      `json:"currentTurnPlayerId"`
	TimerEndsAt         *time.Time  `json:"timerEndsAt,omitempty"`
}

type VoteDecisionData struct {
	HintRound   int       `json:"hintRound"`
	TimerEndsAt time.Time `json:"timerEndsAt"`
}

type VotingData struct {
	TimerEndsAt time.Time `json:"timerEndsAt"`
	ChatEnabled bool      `json:"chatEnabled"`
}

type ResultsData struct {
	Results RoundResults `json:"results"`
}

func (LobbyData) phase() Phase            { return PhaseLobby }
func (SpinningCategoryData) phase() Phase { return PhaseSpinningCategory }
func (SpinningWordData) phase() Phase     { return PhaseSpinningWord }
func (RoleRevealData) phase() Phase       { return PhaseRoleReveal }
func (HintRoundData) phase() Phase        { return PhaseHintRound }
func (VoteDecisionData) phase() Phase     { return PhaseVoteDecision }
func (VotingData) phase() Phase           { return PhaseVoting }

// ResultsData serves both result phases.
func (d ResultsData) phase() Phase {
	if d.Results.IsGameOver {
		return PhaseGameResults
	}
	return PhaseVoteResults
}

func phaseChanged(d PhaseData) PhaseChange {
	return PhaseChange{Phase: d.phase(), Data: d}
}

// RoleAssignment is sent privately to each player. Word is nil for the
// impostor.
type RoleAssignment struct {
	Round      int             `json:"round"`
	IsImpostor bool            `json:"isImpostor"`
	Category   CategorySummary `json:"category"`
	Word       *string         `json:"word"`
}

// RoundResults is the full scoring breakdown of a resolved round.
type RoundResults struct {
	Round          int               `json:"round"`
	ImpostorID     string            `json:"impostorId"`
	ImpostorName   string            `json:"impostorName"`
	ImpostorCaught bool              `json:"impostorCaught"`
	Forfeited      bool              `json:"forfeited"`
	AccusedID      string            `json:"accusedId,omitempty"`
	Word           string            `json:"word"`
	Votes          map[string]string `json:"votes"`
	VoteCounts     map[string]int    `json:"voteCounts"`
	RoundScores    map[string]int    `json:"roundScores"`
	TotalScores    map[string]int    `json:"totalScores"`
	IsGameOver     bool              `json:"isGameOver"`
}

// TurnChange is the turn-changed payload.
type TurnChange struct {
	PlayerID    string     `json:"playerId"`
	TimerEndsAt *time.Time `json:"timerEndsAt,omitempty"`
}

// TimerUpdate is the timer-update payload.
type TimerUpdate struct {
	Phase       Phase `json:"phase"`
	SecondsLeft int   `json:"secondsLeft"`
}
