package entity

import "context"

// Repository хранит записи на сервере.
type Repository interface {
	List(ctx context.Context, t Type) ([]Record, error)
	Get(ctx context.Context, t Type, id string) (*Record, error)
	FindByIdempotencyKey(ctx context.Context, t Type, key string) (*Record, error)
	ExistsByField(ctx context.Context, t Type, field, value, excludeID string) (bool, error)
	// Create вставляет rec и применяет изменения остатков в одной транзакции.
	Create(ctx context.Context, rec *Record, idempotencyKey string, adjust []StockAdjustment) error
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, t Type, id string) error
}
