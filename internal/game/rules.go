package game

import "time"

// DecisionPolicy decides how an expired vote_decision countdown resolves.
type DecisionPolicy string

const (
	// DecisionPolicyContinue always starts another hint round on expiry.
	DecisionPolicyContinue DecisionPolicy = "continue"
	// DecisionPolicyTally resolves expiry by the ballots already cast.
	DecisionPolicyTally DecisionPolicy = "tally"
)

// Rules are the server-wide knobs of the networked state machine.
type Rules struct {
	MinPlayers int
	MaxPlayers int

	CategorySpin time.Duration
	WordSpin     time.Duration
	RoleReveal   time.Duration
	VoteDecision time.Duration
	Voting       time.Duration

	HintMaxLength int
	ChatMaxLength int
	ChatHistory   int

	DecisionTimeoutPolicy DecisionPolicy
}

// DefaultRules mirrors the shipped server.yaml.
func DefaultRules() Rules {
	return Rules{
		MinPlayers:            3,
		MaxPlayers:            20,
		CategorySpin:          4 * time.Second,
		WordSpin:              3 * time.Second,
		RoleReveal:            5 * time.Second,
		VoteDecision:          15 * time.Second,
		Voting:                45 * time.Second,
		HintMaxLength:         100,
		ChatMaxLength:         500,
		ChatHistory:           100,
		DecisionTimeoutPolicy: DecisionPolicyContinue,
	}
}

// RoomSettings are the host-editable lobby settings
type RoomSettings struct {
	MaxPlayers    int  `json:"maxPlayers"`
	ChatEnabled   bool `json:"chatEnabled"`
	TimerEnabled  bool `json:"timerEnabled"`
	TimerDuration int  `json:"timerDuration"` // seconds per hint turn
	RoundsPerGame int  `json:"roundsPerGame"`
}

// DefaultRoomSettings is applied to every new room.
func DefaultRoomSettings() RoomSettings {
	return RoomSettings{
		MaxPlayers:    10,
		ChatEnabled:   true,
		TimerEnabled:  true,
		TimerDuration: 120,
		RoundsPerGame: 3,
	}
}

// SettingsPatch is a partial settings update; nil fields are left alone.
type SettingsPatch struct {
	MaxPlayers    *int  `json:"maxPlayers,omitempty"`
	ChatEnabled   *bool `json:"chatEnabled,omitempty"`
	TimerEnabled  *bool `json:"timerEnabled,omitempty"`
	TimerDuration *int  `json:"timerDuration,omitempty"`
	RoundsPerGame *int  `json:"roundsPerGame,omitempty"`
}

const (
	minTimerDuration = 10
	maxTimerDuration = 600
	maxRoundsPerGame = 10
)
