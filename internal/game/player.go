package game

import (
	"time"
)

// Cosmetics are decorative profile choices carried with a player.
type Cosmetics struct {
	FrameID     string `json:"frameId"`
	NameColorID string `json:"nameColorId"`
	IconID      string `json:"iconId"`
}

// DefaultCosmetics is what every new player starts with.
var DefaultCosmetics = Cosmetics{
	FrameID:     "default",
	NameColorID: "white",
	IconID:      "default",
}

// Player represents a member of a networked room
type Player struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsHost      bool      `json:"isHost"`
	IsReady     bool      `json:"isReady"`
	IsConnected bool      `json:"isConnected"`
	Cosmetics   Cosmetics `json:"cosmetics"`
	JoinedAt    time.Time `json:"joinedAt"`

	// DisconnectedAt is zero while connected.
	DisconnectedAt time.Time `json:"-"`
}

// NewPlayer creates a connected, non-host, non-ready player
func NewPlayer(id, name string, now time.Time) *Player {
	return &Player{
		ID:          id,
		Name:        name,
		IsConnected: true,
		Cosmetics:   DefaultCosmetics,
		JoinedAt:    now,
	}
}
