// Package config provides configuration for the arena server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the arena configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Lobby settings
	LobbyMinAgents int
	LobbyMaxAgents int
	LobbyWait      time.Duration
	TickInterval   time.Duration

	// Match settings
	MatchDuration time.Duration
	Permadeath    bool

	// Persistence
	SaveDebounce time.Duration

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:       getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:    getEnv("DATABASE_URL", "file:arena.db?cache=shared&mode=rwc"),
		LobbyMinAgents: getEnvInt("LOBBY_MIN_AGENTS", 2),
		LobbyMaxAgents: getEnvInt("LOBBY_MAX_AGENTS", 10),
		LobbyWait:      time.Duration(getEnvInt("LOBBY_WAIT_MS", 240000)) * time.Millisecond,
		TickInterval:   time.Duration(getEnvInt("TICK_INTERVAL_MS", 1000)) * time.Millisecond,
		MatchDuration:  time.Duration(getEnvInt("MATCH_DURATION_MS", 6500)) * time.Millisecond,
		Permadeath:     getEnvBool("PERMADEATH", true),
		SaveDebounce:   time.Duration(getEnvInt("SAVE_DEBOUNCE_MS", 250)) * time.Millisecond,
		PingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
