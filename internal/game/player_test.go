package game

import (
	"testing"
	"time"
)

func TestNewPlayer(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		playerName string
	}{
		{
			name:       "creates player with all fields",
			id:         "player-123",
			playerName: "Alice",
		},
		{
			name:       "creates player with special characters in name",
			id:         "player-789",
			playerName: "Player@#$%",
		},
		{
			name:       "creates player with unicode name",
			id:         "player-unicode",
			playerName: "プレイヤー",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
			player := NewPlayer(tt.id, tt.playerName, now)

			if player.ID != tt.id {
				t.Errorf("expected ID %s, got %s", tt.id, player.ID)
			}
			if player.Name != tt.playerName {
				t.Errorf("expected Name %s, got %s", tt.playerName, player.Name)
			}
			if player.IsHost || player.IsReady {
				t.Error("new player should be neither host nor ready")
			}
			if !player.IsConnected {
				t.Error("new player should be connected")
			}
			if player.Cosmetics != DefaultCosmetics {
				t.Errorf("expected default cosmetics, got %+v", player.Cosmetics)
			}
			if !player.JoinedAt.Equal(now) {
				t.Errorf("expected JoinedAt %v, got %v", now, player.JoinedAt)
			}
		})
	}
}
