package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"pharmasync/internal/domain/entity"
)

const uniqueViolation = "23505"

const selectColumns = `SELECT type, id, payload, created_at, updated_at FROM entities`

// EntityRepository хранит все коллекции в одной JSONB таблице с ключом по типу.
type EntityRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ entity.Repository = (*EntityRepository)(nil)

func NewEntityRepository(s *Storage, log *slog.Logger) *EntityRepository {
	return &EntityRepository{
		pool: s.pool,
		log:  log.With("component", "entity_repository"),
	}
}

func (r *EntityRepository) List(ctx context.Context, t entity.Type) ([]entity.Record, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` WHERE type = $1 ORDER BY created_at, id`, string(t))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t, err)
	}

	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", t, err)
	}
	return records, nil
}

func (r *EntityRepository) Get(ctx context.Context, t entity.Type, id string) (*entity.Record, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` WHERE type = $1 AND id = $2`, string(t), id)
	return oneRecord(row, t)
}

func (r *EntityRepository) FindByIdempotencyKey(ctx context.Context, t entity.Type, key string) (*entity.Record, error) {
	row := r.pool.QueryRow(ctx, selectColumns+` WHERE type = $1 AND idempotency_key = $2`, string(t), key)
	return oneRecord(row, t)
}

// ExistsByField проверяет, есть ли другая запись типа t с payload[field] = value.
func (r *EntityRepository) ExistsByField(ctx context.Context, t entity.Type, field, value, excludeID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM entities
			WHERE type = $1 AND payload->>$2 = $3 AND id <> $4
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, string(t), field, value, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s.%s: %w", t, field, err)
	}
	return exists, nil
}

// Create вставляет rec и двигает остатки товаров в той же транзакции.
func (r *EntityRepository) Create(ctx context.Context, rec *entity.Record, idempotencyKey string, adjust []entity.StockAdjustment) error {
	var key *string
	if idempotencyKey != "" {
		key = &idempotencyKey
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
			INSERT INTO entities (type, id, payload, idempotency_key, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`

		_, err := tx.Exec(ctx, insert, string(rec.Type), rec.ID, rec.Payload, key, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", entity.ErrDuplicate, pgErr.ConstraintName)
			}
			return fmt.Errorf("insert %s: %w", rec.Type, err)
		}

		for _, adj := range adjust {
			if err := adjustStock(ctx, tx, adj); err != nil {
				return err
			}
		}
		return nil
	})
}

// adjustStock не опускает остаток ниже нуля. Неизвестные товары
// пропускаются, но само движение сохраняется.
func adjustStock(ctx context.Context, tx pgx.Tx, adj entity.StockAdjustment) error {
	const query = `
		UPDATE entities
		SET payload = jsonb_set(
				payload, '{quantity_in_stock}',
				to_jsonb(GREATEST(COALESCE((payload->>'quantity_in_stock')::numeric, 0) + $1, 0))
			),
			updated_at = NOW()
		WHERE type = 'products' AND id = $2`

	if _, err := tx.Exec(ctx, query, adj.Delta, adj.ProductID); err != nil {
		return fmt.Errorf("adjust stock of %s: %w", adj.ProductID, err)
	}
	return nil
}

func (r *EntityRepository) Update(ctx context.Context, rec *entity.Record) error {
	const query = `
		UPDATE entities SET payload = $3, updated_at = $4
		WHERE type = $1 AND id = $2`

	tag, err := r.pool.Exec(ctx, query, string(rec.Type), rec.ID, rec.Payload, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", rec.Type, rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *EntityRepository) Delete(ctx context.Context, t entity.Type, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM entities WHERE type = $1 AND id = $2`, string(t), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t, id, err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.CollectableRow) (entity.Record, error) {
	var (
		rec entity.Record
		t   string
	)
	if err := row.Scan(&t, &rec.ID, &rec.Payload, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return entity.Record{}, err
	}
	rec.Type = entity.Type(t)
	return rec, nil
}

func oneRecord(row pgx.Row, t entity.Type) (*entity.Record, error) {
	var (
		rec entity.Record
		typ string
	)
	err := row.Scan(&typ, &rec.ID, &rec.Payload, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", t, err)
	}
	rec.Type = entity.Type(typ)
	return &rec, nil
}
