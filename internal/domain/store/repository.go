package store

import (
	"context"

	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
)

// Records - контракт коллекций локального хранилища по типам сущностей.
type Records interface {
	Get(ctx context.Context, t entity.Type, id string) (*entity.Record, error)
	GetAll(ctx context.Context, t entity.Type, filter entity.Filter) ([]entity.Record, error)
	Put(ctx context.Context, t entity.Type, rec *entity.Record) error
	SoftDelete(ctx context.Context, t entity.Type, id string) error
	Remove(ctx context.Context, t entity.Type, id string) error
	// ReplaceID переносит запись с oldID на rec.ID.
	ReplaceID(ctx context.Context, t entity.Type, oldID string, rec *entity.Record) error
	// BulkReplace заменяет коллекцию на records, не трогая строки с id
	// из preserve. Возвращает число записанных строк.
	BulkReplace(ctx context.Context, t entity.Type, records []entity.Record, preserve map[string]bool) (int, error)
	Clear(ctx context.Context, t entity.Type) error
	Count(ctx context.Context, t entity.Type) (entity.Counts, error)
}

// ChangeLog - журнал локальных изменений, только на добавление.
type ChangeLog interface {
	AppendChange(ctx context.Context, c *change.Change) error
	// Changes возвращает изменения по порядку, все, если статусы не заданы.
	Changes(ctx context.Context, statuses ...change.Status) ([]change.Change, error)
	GetChange(ctx context.Context, seq int64) (*change.Change, error)
	UpdateChange(ctx context.Context, c *change.Change) error
	DeleteChange(ctx context.Context, seq int64) error
	CountChanges(ctx context.Context, statuses ...change.Status) (int, error)
	// ResetInFlight возвращает изменения, зависшие после прерванной сессии.
	ResetInFlight(ctx context.Context) (int, error)
	// UnresolvedIDs возвращает id записей типа t с изменениями, не принятыми сервером.
	UnresolvedIDs(ctx context.Context, t entity.Type) (map[string]bool, error)
}

// Meta - небольшое хранилище ключ/значение.
type Meta interface {
	GetMeta(ctx context.Context, key string) (string, bool, error)
	SetMeta(ctx context.Context, key, value string) error
}

// Tx - хранилище внутри одной транзакции.
type Tx interface {
	Records
	ChangeLog
	Meta
}

// Store - постоянное локальное состояние клиента.
type Store interface {
	Tx
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetSession(ctx context.Context, key string) (string, bool, error)
	SetSession(ctx context.Context, key, value string) error
	Close() error
}
