package logger

import (
	"os"

	"golang.org/x/exp/slog"

	"pharmasync/internal/utils/logger/slogpretty"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// New создает логгер процесса для env. Неизвестные окружения логируют как prod.
func New(env string) *slog.Logger {
	switch env {
	case envLocal, "":
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// NewWithLevel - New с заданным уровнем, для флагов вроде --debug.
func NewWithLevel(env string, level slog.Level) *slog.Logger {
	if env == envLocal || env == "" {
		return slog.New(slogpretty.Options{Level: level}.NewHandler(os.Stderr))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.Options{Level: slog.LevelDebug}
	return slog.New(opts.NewHandler(os.Stderr))
}
