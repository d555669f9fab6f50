package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"resumeCraft/internal/config"
)

// New 按配置构造 slog.Logger，并设为默认 logger。
func New(cfg config.LogConfig) *slog.Logger {
	logger := build(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

func build(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level(cfg.Level)}
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func level(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
