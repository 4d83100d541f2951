package entity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// clientFields - служебные ключи, которые клиент может оставить в payload.
var clientFields = []string{"id", "is_temporary_id", "_tempId", "_synced", "_deleted", "_localUpdatedAt"}

type Servicer interface {
	List(ctx context.Context, t Type) (ListResponse, error)
	Create(ctx context.Context, t Type, payload Payload, idempotencyKey string) (*Record, error)
	Update(ctx context.Context, t Type, id string, payload Payload) (*Record, error)
	Delete(ctx context.Context, t Type, id string) error
}

// Service реализует серверную сторону эндпоинтов сущностей.
type Service struct {
	repo      Repository
	validator *Validator
	log       *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: NewValidator(),
		log:       log.With("component", "entity_service"),
		now:       time.Now,
	}
}

// List возвращает все неудаленные записи коллекции.
func (s *Service) List(ctx context.Context, t Type) (ListResponse, error) {
	if err := t.Validate(); err != nil {
		return ListResponse{}, err
	}

	records, err := s.repo.List(ctx, t)
	if err != nil {
		s.log.Error("failed to list records", "type", t, "error", err)
		return ListResponse{}, fmt.Errorf("list %s: %w", t, err)
	}
	if records == nil {
		records = []Record{}
	}

	return ListResponse{Records: records, Total: len(records)}, nil
}

// Create сохраняет новую запись. Повторный ключ идемпотентности возвращает
// запись, созданную первым вызовом.
func (s *Service) Create(ctx context.Context, t Type, payload Payload, idempotencyKey string) (*Record, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, t, idempotencyKey)
		switch {
		case err == nil:
			s.log.Info("idempotent create replayed", "type", t, "id", existing.ID, "key", idempotencyKey)
			return existing, nil
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	data := stripClientFields(payload)
	if err := s.validator.Validate(t, data); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, t, data, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &Record{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.Create(ctx, rec, idempotencyKey, StockAdjustments(t, data))
	if errors.Is(err, ErrDuplicate) && idempotencyKey != "" {
		// параллельный повтор успел вставить первым
		return s.repo.FindByIdempotencyKey(ctx, t, idempotencyKey)
	}
	if err != nil {
		s.log.Error("failed to create record", "type", t, "error", err)
		return nil, fmt.Errorf("create %s: %w", t, err)
	}

	s.log.Info("record created", "type", t, "id", rec.ID)
	return rec, nil
}

// Update заменяет payload существующей записи.
func (s *Service) Update(ctx context.Context, t Type, id string, payload Payload) (*Record, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, t, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s for update: %w", t, err)
	}

	data := stripClientFields(payload)
	if err := s.validator.Validate(t, data); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, t, data, id); err != nil {
		return nil, err
	}

	current.Payload = data
	current.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, current); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.log.Error("failed to update record", "type", t, "id", id, "error", err)
		return nil, fmt.Errorf("update %s: %w", t, err)
	}

	s.log.Info("record updated", "type", t, "id", id)
	return current, nil
}

// Delete удаляет запись.
func (s *Service) Delete(ctx context.Context, t Type, id string) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, t, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		s.log.Error("failed to delete record", "type", t, "id", id, "error", err)
		return fmt.Errorf("delete %s: %w", t, err)
	}

	s.log.Info("record deleted", "type", t, "id", id)
	return nil
}

// checkUnique отклоняет товары с уже занятым штрихкодом или названием.
func (s *Service) checkUnique(ctx context.Context, t Type, data Payload, excludeID string) error {
	if t != Products {
		return nil
	}
	for _, field := range []string{"barcode", "name"} {
		value := data.String(field)
		if value == "" {
			continue
		}
		exists, err := s.repo.ExistsByField(ctx, t, field, value, excludeID)
		if err != nil {
			return fmt.Errorf("check %s uniqueness: %w", field, err)
		}
		if exists {
			return fmt.Errorf("%w: product with %s %q", ErrDuplicate, field, value)
		}
	}
	return nil
}

func stripClientFields(p Payload) Payload {
	out := p.Clone()
	if out == nil {
		out = Payload{}
	}
	for _, k := range clientFields {
		delete(out, k)
	}
	return out
}
