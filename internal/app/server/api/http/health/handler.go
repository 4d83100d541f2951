package health

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Pinger проверяет, отвечает ли база.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	db         Pinger
	log        *slog.Logger
	middleware huma.Middlewares
	now        func() time.Time
}

func NewHandler(db Pinger, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		db:         db,
		log:        log.With("component", "health_handler"),
		middleware: middleware,
		now:        time.Now,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.log.Error("database ping failed", "error", err)
			return nil, huma.Error503ServiceUnavailable("database unavailable")
		}
	}

	return &Output{
		Body: Response{
			Status: "ok",
			Time:   h.now().UTC().Format(time.RFC3339),
		},
	}, nil
}
