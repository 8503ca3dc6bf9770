package config

import (
	"fmt"
	"strings"
	"time"

	"impostor/internal/game"
)

// This file defines the configuration structures used by viper_config.go
// The actual loading is handled by viper in viper_config.go

// ServerConfig represents the server configuration
type ServerConfig struct {
	Server ServerSettings `yaml:"server"`
	Game   GameSettings   `yaml:"game"`
}

// ServerSettings contains transport-level settings
type ServerSettings struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	PublicBaseURL   string        `yaml:"publicBaseURL"` // used in join links and QR codes
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"` // 0 for SSE and websocket support
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"` // regular HTTP requests only

	// Rate limiting (using golang.org/x/time/rate)
	RateLimit      float64 `yaml:"rateLimit"`      // requests per second
	RateLimitBurst int     `yaml:"rateLimitBurst"` // burst size
	IntentRate     float64 `yaml:"intentRate"`     // websocket intents per second per connection
	IntentBurst    int     `yaml:"intentBurst"`

	// Request limits
	MaxRequestSize int64    `yaml:"maxRequestSize"`
	MaxMessageSize int64    `yaml:"maxMessageSize"` // websocket frame limit
	AllowedOrigins []string `yaml:"allowedOrigins"` // empty allows same-host only

	SessionCookieTTL time.Duration `yaml:"sessionCookieTTL"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// GameSettings contains registry and state machine settings
type GameSettings struct {
	RoomCodeLength    int `yaml:"roomCodeLength"`
	MaxPlayersPerRoom int `yaml:"maxPlayersPerRoom"`
	MinPlayersToStart int `yaml:"minPlayersToStart"`

	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	StaleRoomAge    time.Duration `yaml:"staleRoomAge"`
	DisconnectGrace time.Duration `yaml:"disconnectGrace"`
	LocalSessionTTL time.Duration `yaml:"localSessionTTL"`

	CategorySpin time.Duration `yaml:"categorySpin"`
	WordSpin     time.Duration `yaml:"wordSpin"`
	RoleReveal   time.Duration `yaml:"roleReveal"`
	VoteDecision time.Duration `yaml:"voteDecision"`
	Voting       time.Duration `yaml:"voting"`

	HintMaxLength int `yaml:"hintMaxLength"`
	ChatMaxLength int `yaml:"chatMaxLength"`
	ChatHistory   int `yaml:"chatHistory"`

	DecisionTimeoutPolicy string `yaml:"decisionTimeoutPolicy"`

	RoomDefaults RoomDefaults `yaml:"roomDefaults"`
}

// RoomDefaults are the settings every new room starts with
type RoomDefaults struct {
	MaxPlayers    int  `yaml:"maxPlayers"`
	ChatEnabled   bool `yaml:"chatEnabled"`
	TimerEnabled  bool `yaml:"timerEnabled"`
	TimerDuration int  `yaml:"timerDuration"`
	RoundsPerGame int  `yaml:"roundsPerGame"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *ServerConfig {
	rules := game.DefaultRules()
	room := game.DefaultRoomSettings()

	return &ServerConfig{
		Server: ServerSettings{
			Port:             "8080",
			Host:             "0.0.0.0",
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     0, // long-lived SSE and websocket streams
			IdleTimeout:      0,
			ShutdownTimeout:  30 * time.Second,
			RequestTimeout:   60 * time.Second,
			RateLimit:        10,
			RateLimitBurst:   20,
			IntentRate:       5,
			IntentBurst:      10,
			MaxRequestSize:   1048576, // 1MB
			MaxMessageSize:   4096,
			SessionCookieTTL: 24 * time.Hour,
			LogLevel:         "info",
			LogFormat:        "text",
		},
		Game: GameSettings{
			RoomCodeLength:        6,
			MaxPlayersPerRoom:     rules.MaxPlayers,
			MinPlayersToStart:     rules.MinPlayers,
			CleanupInterval:       5 * time.Minute,
			StaleRoomAge:          30 * time.Minute,
			DisconnectGrace:       2 * time.Minute,
			LocalSessionTTL:       2 * time.Hour,
			CategorySpin:          rules.CategorySpin,
			WordSpin:              rules.WordSpin,
			RoleReveal:            rules.RoleReveal,
			VoteDecision:          rules.VoteDecision,
			Voting:                rules.Voting,
			HintMaxLength:         rules.HintMaxLength,
			ChatMaxLength:         rules.ChatMaxLength,
			ChatHistory:           rules.ChatHistory,
			DecisionTimeoutPolicy: string(rules.DecisionTimeoutPolicy),
			RoomDefaults: RoomDefaults{
				MaxPlayers:    room.MaxPlayers,
				ChatEnabled:   room.ChatEnabled,
				TimerEnabled:  room.TimerEnabled,
				TimerDuration: room.TimerDuration,
				RoundsPerGame: room.RoundsPerGame,
			},
		},
	}
}

// Validate checks if the configuration is valid
func (c *ServerConfig) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("HOST must be set")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("rateLimit and rateLimitBurst must be positive")
	}
	if c.Server.IntentRate <= 0 || c.Server.IntentBurst < 1 {
		return fmt.Errorf("intentRate and intentBurst must be positive")
	}
	switch strings.ToLower(c.Server.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("logFormat must be text or json, got %q", c.Server.LogFormat)
	}

	g := c.Game
	if g.RoomCodeLength < 4 {
		return fmt.Errorf("roomCodeLength must be at least 4")
	}
	if g.MinPlayersToStart < 2 {
		return fmt.Errorf("minPlayersToStart must be at least 2")
	}
	if g.MaxPlayersPerRoom < g.MinPlayersToStart {
		return fmt.Errorf("maxPlayersPerRoom cannot be less than minPlayersToStart")
	}
	if g.CleanupInterval <= 0 {
		return fmt.Errorf("cleanupInterval must be positive")
	}
	for name, d := range map[string]time.Duration{
		"categorySpin": g.CategorySpin,
		"wordSpin":     g.WordSpin,
		"roleReveal":   g.RoleReveal,
		"voteDecision": g.VoteDecision,
		"voting":       g.Voting,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if g.HintMaxLength < 1 || g.ChatMaxLength < 1 || g.ChatHistory < 1 {
		return fmt.Errorf("hint and chat limits must be positive")
	}
	switch game.DecisionPolicy(g.DecisionTimeoutPolicy) {
	case game.DecisionPolicyContinue, game.DecisionPolicyTally:
	default:
		return fmt.Errorf("decisionTimeoutPolicy must be continue or tally, got %q", g.DecisionTimeoutPolicy)
	}

	d := g.RoomDefaults
	if d.MaxPlayers < g.MinPlayersToStart || d.MaxPlayers > g.MaxPlayersPerRoom {
		return fmt.Errorf("roomDefaults.maxPlayers must be between %d and %d", g.MinPlayersToStart, g.MaxPlayersPerRoom)
	}
	if d.RoundsPerGame < 1 {
		return fmt.Errorf("roomDefaults.roundsPerGame must be at least 1")
	}
	if d.TimerDuration < 1 {
		return fmt.Errorf("roomDefaults.timerDuration must be at least 1")
	}

	return nil
}

// Rules converts the game section into state machine rules.
func (c *ServerConfig) Rules() game.Rules {
	g := c.Game
	return game.Rules{
		MinPlayers:            g.MinPlayersToStart,
		MaxPlayers:            g.MaxPlayersPerRoom,
		CategorySpin:          g.CategorySpin,
		WordSpin:              g.WordSpin,
		RoleReveal:            g.RoleReveal,
		VoteDecision:          g.VoteDecision,
		Voting:                g.Voting,
		HintMaxLength:         g.HintMaxLength,
		ChatMaxLength:         g.ChatMaxLength,
		ChatHistory:           g.ChatHistory,
		DecisionTimeoutPolicy: game.DecisionPolicy(g.DecisionTimeoutPolicy),
	}
}

// RoomSettings returns the settings new rooms start with.
func (c *ServerConfig) RoomSettings() game.RoomSettings {
	d := c.Game.RoomDefaults
	return game.RoomSettings{
		MaxPlayers:    d.MaxPlayers,
		ChatEnabled:   d.ChatEnabled,
		TimerEnabled:  d.TimerEnabled,
		TimerDuration: d.TimerDuration,
		RoundsPerGame: d.RoundsPerGame,
	}
}

// Addr returns host:port for the HTTP listener.
func (c *ServerConfig) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
