package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pharmasync/internal/app/server/api"
	"pharmasync/internal/app/server/config"
	"pharmasync/internal/infrastructure/storage/postgres"
	"pharmasync/internal/utils/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := postgres.New(ctx, cfg.DB.DatabaseURI, log)
	if err != nil {
		log.Error("failed to init storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	if cfg.Server.APIToken == "" {
		log.Warn("api_token is empty, entity routes are unauthenticated")
	}

	router := api.New(api.Deps{
		DB:       storage,
		Entities: postgres.NewEntityRepository(storage, log),
		APIToken: cfg.Server.APIToken,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server started", "address", cfg.Server.RunAddress, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
