package migration

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrator - используемая часть migrate.Migrate.
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine создает Migrator, тесты подменяют его и обходятся без базы.
type MigrationEngine func(src source.Driver, databaseURL string) (Migrator, error)

// Migration применяет встроенные SQL миграции к одной базе. Драйверы
// регистрируют пакеты хранилищ, которым принадлежит схема.
type Migration struct {
	fsys        fs.FS
	dir         string
	databaseURL string
	engine      MigrationEngine
}

func NewMigration(fsys fs.FS, dir, databaseURL string, engine MigrationEngine) *Migration {
	if engine == nil {
		engine = DefaultEngine
	}
	return &Migration{
		fsys:        fsys,
		dir:         dir,
		databaseURL: databaseURL,
		engine:      engine,
	}
}

// DefaultEngine - рабочий движок на golang-migrate.
func DefaultEngine(src source.Driver, databaseURL string) (Migrator, error) {
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

// Up применяет все новые миграции. ErrNoChange ошибкой не считается.
func (mg *Migration) Up() (err error) {
	src, err := iofs.New(mg.fsys, mg.dir)
	if err != nil {
		return fmt.Errorf("open migrations %s: %w", mg.dir, err)
	}

	m, err := mg.engine(src, mg.databaseURL)
	if err != nil {
		_ = src.Close()
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			err = errors.Join(err, fmt.Errorf("migration source: %w", serr))
		}
		if dberr != nil {
			err = errors.Join(err, fmt.Errorf("migration database: %w", dberr))
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}
