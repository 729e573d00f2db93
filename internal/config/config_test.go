package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "it", cfg.Session.DefaultLanguage)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.JoinRecheckDelay)
	assert.Equal(t, 3*time.Second, cfg.Session.TypingTTL)
	assert.Empty(t, cfg.Session.WordlistBaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DECRYPTO_LANGUAGE", "en")
	t.Setenv("DECRYPTO_JOIN_RECHECK_DELAY", "1s")
	t.Setenv("DECRYPTO_TYPING_TTL", "500")
	t.Setenv("DECRYPTO_WORDLIST_BASE_URL", "https://words.example")
	t.Setenv("DECRYPTO_LOG_LEVEL", "debug")
	t.Setenv("DECRYPTO_LOG_FORMAT", "json")

	cfg := Load()
	assert.Equal(t, "en", cfg.Session.DefaultLanguage)
	assert.Equal(t, time.Second, cfg.Session.JoinRecheckDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.TypingTTL)
	assert.Equal(t, "https://words.example", cfg.Session.WordlistBaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestDurationFallback(t *testing.T) {
	t.Setenv("DECRYPTO_TYPING_TTL", "not-a-duration")
	cfg := Load()
	assert.Equal(t, 3*time.Second, cfg.Session.TypingTTL)
}
