package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. JSON output is for aggregated
// environments; any other format falls back to text with debug level,
// which is what local development wants.
func NewLogger(cfg *Config) *slog.Logger {
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}))
}
