package app

import (
	"log/slog"
	"os"
	"strings"

	"decrypto/internal/config"
	"decrypto/internal/store"
)

// NewSessionFromConfig builds a Session wired from process configuration:
// logger, language, timing tunables, and the remote word list source when
// a base URL is configured.
func NewSessionFromConfig(cfg *config.Config, st store.Store, storage Storage) (*Session, error) {
	opts := Options{
		Store:            st,
		Storage:          storage,
		Logger:           newConfiguredLogger(cfg.Logging),
		Language:         cfg.Session.DefaultLanguage,
		JoinRecheckDelay: cfg.Session.JoinRecheckDelay,
		TypingTTL:        cfg.Session.TypingTTL,
	}
	if cfg.Session.WordlistBaseURL != "" {
		opts.Words = NewHTTPWordSource(cfg.Session.WordlistBaseURL)
	}
	return NewSession(opts)
}

func newConfiguredLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
