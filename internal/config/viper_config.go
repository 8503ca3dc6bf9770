package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"host":       "server.host",
	"port":       "server.port",
	"log-level":  "server.loglevel",
	"log-format": "server.logformat",
}

// LoadConfig loads configuration using Viper
// Priority order: Environment variables > Config file > Defaults
func LoadConfig(configPath string) (*ServerConfig, error) {
	return LoadConfigWithFlags(configPath, nil)
}

// LoadConfigWithFlags is LoadConfig with explicitly set flags taking
// precedence over everything else.
func LoadConfigWithFlags(configPath string, flags *pflag.FlagSet) (*ServerConfig, error) {
	v := viper.New()

	// Set config file details
	v.SetConfigName("server")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/impostor")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// These allow both IMPOSTOR style nested keys and the short names to work
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.publicbaseurl", "PUBLIC_BASE_URL")
	v.BindEnv("server.loglevel", "LOG_LEVEL")
	v.BindEnv("server.logformat", "LOG_FORMAT")
	v.BindEnv("server.ratelimit", "RATE_LIMIT")
	v.BindEnv("server.ratelimitburst", "RATE_LIMIT_BURST")
	v.BindEnv("server.maxrequestsize", "MAX_REQUEST_SIZE")
	v.BindEnv("game.decisiontimeoutpolicy", "DECISION_TIMEOUT_POLICY")

	setDefaults(v, DefaultConfig())

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				v.BindPFlag(key, f)
			}
		}
	}

	// The config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &ServerConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *ServerConfig) {
	s := d.Server
	v.SetDefault("server.port", s.Port)
	v.SetDefault("server.host", s.Host)
	v.SetDefault("server.publicbaseurl", s.PublicBaseURL)
	v.SetDefault("server.readtimeout", s.ReadTimeout)
	v.SetDefault("server.writetimeout", s.WriteTimeout)
	v.SetDefault("server.idletimeout", s.IdleTimeout) // 0 for SSE support
	v.SetDefault("server.shutdowntimeout", s.ShutdownTimeout)
	v.SetDefault("server.requesttimeout", s.RequestTimeout)
	v.SetDefault("server.ratelimit", s.RateLimit)
	v.SetDefault("server.ratelimitburst", s.RateLimitBurst)
	v.SetDefault("server.intentrate", s.IntentRate)
	v.SetDefault("server.intentburst", s.IntentBurst)
	v.SetDefault("server.maxrequestsize", s.MaxRequestSize)
	v.SetDefault("server.maxmessagesize", s.MaxMessageSize)
	v.SetDefault("server.allowedorigins", s.AllowedOrigins)
	v.SetDefault("server.sessioncookiettl", s.SessionCookieTTL)
	v.SetDefault("server.loglevel", s.LogLevel)
	v.SetDefault("server.logformat", s.LogFormat)

	g := d.Game
	v.SetDefault("game.roomcodelength", g.RoomCodeLength)
	v.SetDefault("game.maxplayersperroom", g.MaxPlayersPerRoom)
	v.SetDefault("game.minplayerstostart", g.MinPlayersToStart)
	v.SetDefault("game.cleanupinterval", g.CleanupInterval)
	v.SetDefault("game.staleroomage", g.StaleRoomAge)
	v.SetDefault("game.disconnectgrace", g.DisconnectGrace)
	v.SetDefault("game.localsessionttl", g.LocalSessionTTL)
	v.SetDefault("game.categoryspin", g.CategorySpin)
	v.SetDefault("game.wordspin", g.WordSpin)
	v.SetDefault("game.rolereveal", g.RoleReveal)
	v.SetDefault("game.votedecision", g.VoteDecision)
	v.SetDefault("game.voting", g.Voting)
	v.SetDefault("game.hintmaxlength", g.HintMaxLength)
	v.SetDefault("game.chatmaxlength", g.ChatMaxLength)
	v.SetDefault("game.chathistory", g.ChatHistory)
	v.SetDefault("game.decisiontimeoutpolicy", g.DecisionTimeoutPolicy)
	v.SetDefault("game.roomdefaults.maxplayers", g.RoomDefaults.MaxPlayers)
	v.SetDefault("game.roomdefaults.chatenabled", g.RoomDefaults.ChatEnabled)
	v.SetDefault("game.roomdefaults.timerenabled", g.RoomDefaults.TimerEnabled)
	v.SetDefault("game.roomdefaults.timerduration", g.RoomDefaults.TimerDuration)
	v.SetDefault("game.roomdefaults.roundspergame", g.RoomDefaults.RoundsPerGame)
}
