package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/pedalwatch/ride-weather-etl/internal/config"
)

// NewLogger builds the service logger from config. LOG_FORMAT selects JSON
// (the default, for log aggregation) or text handlers; unknown LOG_LEVEL
// values fall back to info.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
