package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	entityAPI "pharmasync/internal/app/server/api/http/entity"
	healthAPI "pharmasync/internal/app/server/api/http/health"
	"pharmasync/internal/app/server/api/http/middleware"
	"pharmasync/internal/app/server/api/http/middleware/auth"
	"pharmasync/internal/app/server/api/http/middleware/logger"
	"pharmasync/internal/domain/entity"
)

const (
	title   = "Pharmasync API"
	version = "1.0.0"
)

// Deps - зависимости HTTP слоя.
type Deps struct {
	DB       healthAPI.Pinger
	Entities entity.Repository
	APIToken string
}

// New собирает роутер, все операции регистрируются через huma.
//
//	GET    /api/health          проверка связи (публичный)
//	GET    /api/{type}          список коллекции
//	POST   /api/{type}          создание, учитывает Idempotency-Key
//	PUT    /api/{type}/{id}     замена полей записи
//	DELETE /api/{type}/{id}     удаление записи
func New(deps Deps, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	cfg := huma.DefaultConfig(title, version)
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}
	api := humachi.New(mux, cfg)

	loggerMW := logger.New(log)
	authMW := auth.New(api, deps.APIToken, log)
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthAPI.NewHandler(deps.DB, log, middlewares.GetAllAndClear()).SetupRoutes(api)

	entityService := entity.NewService(deps.Entities, log)
	middlewares.Add(loggerMW.Middleware(), authMW.Middleware())
	entityAPI.NewHandler(entityService, log, middlewares.GetAllAndClear()).SetupRoutes(api)

	return mux
}
