package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

const bearerPrefix = "Bearer "

// Auth проверяет статический API токен, общий для всех клиентов аптеки.
type Auth struct {
	api   huma.API
	token []byte
	log   *slog.Logger
}

// New создает middleware. Пустой токен отключает проверку.
func New(api huma.API, token string, log *slog.Logger) *Auth {
	return &Auth{
		api:   api,
		token: []byte(token),
		log:   log.With("component", "auth_middleware"),
	}
}

func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if len(a.token) == 0 {
			next(ctx)
			return
		}

		header := ctx.Header("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			a.reject(ctx, "missing bearer token")
			return
		}

		given := []byte(strings.TrimPrefix(header, bearerPrefix))
		if subtle.ConstantTimeCompare(given, a.token) != 1 {
			a.reject(ctx, "invalid token")
			return
		}

		next(ctx)
	}
}

func (a *Auth) reject(ctx huma.Context, reason string) {
	a.log.Warn("request rejected", "reason", reason, "path", ctx.URL().Path, "remote_addr", ctx.RemoteAddr())
	if err := huma.WriteErr(a.api, ctx, http.StatusUnauthorized, "Unauthorized"); err != nil {
		a.log.Error("failed to write auth error", "error", err)
	}
}
