package postgres

import (
	"context"
	"embed"
	"fmt"

	// Регистрирует схему postgres для golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"pharmasync/internal/infrastructure/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Storage владеет пулом соединений сервера.
type Storage struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New применяет миграции и подключается к databaseURI.
func New(ctx context.Context, databaseURI string, log *slog.Logger) (*Storage, error) {
	mg := migration.NewMigration(migrationsFS, "migrations", databaseURI, migration.DefaultEngine)
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Storage{pool: pool, log: log.With("component", "postgres")}
	s.log.Info("database ready", "max_conns", pool.Config().MaxConns)
	return s, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}
