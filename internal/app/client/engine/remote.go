package engine

import (
	"context"

	"pharmasync/internal/domain/entity"
)

// Remote - основной API. Каждый вызов возвращает каноническое серверное
// представление затронутых записей.
type Remote interface {
	List(ctx context.Context, t entity.Type) ([]entity.Record, error)
	Create(ctx context.Context, t entity.Type, payload entity.Payload, idempotencyKey string) (*entity.Record, error)
	Update(ctx context.Context, t entity.Type, id string, payload entity.Payload) (*entity.Record, error)
	Delete(ctx context.Context, t entity.Type, id string) error
}
