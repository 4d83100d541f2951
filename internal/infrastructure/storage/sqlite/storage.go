package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	// Регистрирует схему sqlite3 для golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"pharmasync/internal/domain/store"
	"pharmasync/internal/infrastructure/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout фиксированной ширины, чтобы время сортировалось как строка.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// querier реализуют и *sql.DB, и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type ops struct {
	q querier
}

// Storage - локальное хранилище клиента в одном файле SQLite.
type Storage struct {
	ops
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Tx выполняет операции хранилища внутри одной транзакции SQLite.
type Tx struct {
	ops
}

var (
	_ store.Store = (*Storage)(nil)
	_ store.Tx    = (*Tx)(nil)
)

// New мигрирует базу по пути path и открывает ее с одним соединением
// в режиме WAL. Транзакции берут блокировку записи сразу при старте,
// поэтому другой процесс не закоммитит между их чтением и записью.
func New(path string, log *slog.Logger) (*Storage, error) {
	mg := migration.NewMigration(migrationsFS, "migrations", "sqlite3://"+path, migration.DefaultEngine)
	if err := mg.Up(); err != nil {
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect local store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{
		ops:  ops{q: db},
		db:   db,
		path: path,
		log:  log.With("component", "local_store"),
	}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InTx выполняет fn в транзакции и коммитит, если fn вернула nil.
func (s *Storage) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Tx{ops: ops{q: sqlTx}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.log.Error("failed to roll back", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, key string) (string, bool, error) {
	return s.getKV(ctx, "session", key)
}

func (s *Storage) SetSession(ctx context.Context, key, value string) error {
	return s.setKV(ctx, "session", key, value)
}

func (o ops) GetMeta(ctx context.Context, key string) (string, bool, error) {
	return o.getKV(ctx, "sync_meta", key)
}

func (o ops) SetMeta(ctx context.Context, key, value string) error {
	return o.setKV(ctx, "sync_meta", key, value)
}

func (o ops) getKV(ctx context.Context, table, key string) (string, bool, error) {
	var value string
	err := o.q.QueryRowContext(ctx, "SELECT value FROM "+table+" WHERE key = ?", key).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("read %s %q: %w", table, key, err)
	}
	return value, true, nil
}

func (o ops) setKV(ctx context.Context, table, key, value string) error {
	query := "INSERT INTO " + table + ` (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := o.q.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("write %s %q: %w", table, key, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
