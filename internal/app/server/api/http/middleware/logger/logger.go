package logger

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Logger пишет одну строку на каждый обработанный запрос.
type Logger struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Logger {
	return &Logger{
		log: log.With(slog.String("component", "http_logger")),
	}
}

func (l *Logger) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		method := ctx.Method()
		path := ctx.URL().Path

		next(ctx)

		status := ctx.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}

		l.log.Log(ctx.Context(), level, "HTTP request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", ctx.RemoteAddr()),
			slog.String("idempotency_key", ctx.Header("Idempotency-Key")),
		)
	}
}
