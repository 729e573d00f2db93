package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all client-session configuration
type Config struct {
	Session SessionConfig
	Logging LoggingConfig
}

// SessionConfig holds game-session tunables
type SessionConfig struct {
	// DefaultLanguage is the word-list language used until a room
	// dictates its own ("it" or "en").
	DefaultLanguage string

	// JoinRecheckDelay is the grace period after which a join is
	// re-validated against the room membership, catching the race where
	// the game starts between the initial read and listener attachment.
	JoinRecheckDelay time.Duration

	// TypingTTL is how long a typing indicator lives before auto-clear.
	TypingTTL time.Duration

	// WordlistBaseURL is where word lists are fetched from.
	WordlistBaseURL string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // "json" or "text"
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Session: SessionConfig{
			DefaultLanguage:  getEnv("DECRYPTO_LANGUAGE", "it"),
			JoinRecheckDelay: getEnvDuration("DECRYPTO_JOIN_RECHECK_DELAY", 250*time.Millisecond),
			TypingTTL:        getEnvDuration("DECRYPTO_TYPING_TTL", 3*time.Second),
			WordlistBaseURL:  getEnv("DECRYPTO_WORDLIST_BASE_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("DECRYPTO_LOG_LEVEL", "info"),
			Format: getEnv("DECRYPTO_LOG_FORMAT", "text"),
		},
	}
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvDuration returns an environment variable parsed as a duration
// (or milliseconds when a bare integer) or a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
