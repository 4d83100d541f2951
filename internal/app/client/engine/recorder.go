package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
	"pharmasync/internal/domain/store"
)

// Recorder журналирует локальные изменения. Запись в журнал и в коллекцию
// коммитятся одной транзакцией, изменение без записи в журнале не сохранится.
type Recorder struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewRecorder(st store.Store, log *slog.Logger) *Recorder {
	return &Recorder{
		store: st,
		log:   log.With("component", "change_recorder"),
		now:   time.Now,
	}
}

// Record применяет изменение к локальному хранилищу и добавляет его в журнал.
// Создание без id получает временный id. Удаление уже удаленной
// записи игнорируется и возвращает nil.
func (r *Recorder) Record(ctx context.Context, t entity.Type, action change.Action, id string, payload entity.Payload) (*change.Change, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := action.Validate(); err != nil {
		return nil, err
	}
	if action != change.ActionCreate && id == "" {
		return nil, fmt.Errorf("%s %s: empty id: %w", action, t, entity.ErrInvalidPayload)
	}

	now := r.now().UTC()
	var c *change.Change
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		switch action {
		case change.ActionCreate:
			c, err = r.create(ctx, tx, t, id, payload, now)
		case change.ActionUpdate:
			c, err = r.update(ctx, tx, t, id, payload, now)
		case change.ActionDelete:
			c, err = r.delete(ctx, tx, t, id, now)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if c == nil {
		r.log.Warn("ignoring delete of already deleted record", "type", t, "id", id)
		return nil, nil
	}

	r.log.Debug("change recorded", "seq", c.Seq, "type", t, "action", action, "id", c.EntityID)
	return c, nil
}

func (r *Recorder) create(ctx context.Context, tx store.Tx, t entity.Type, id string, payload entity.Payload, now time.Time) (*change.Change, error) {
	if id == "" {
		id = entity.NewTempID()
	}
	temp := entity.IsTemporaryID(id)

	data := payload.Clone()
	if data == nil {
		data = entity.Payload{}
	}
	delete(data, "id")
	delete(data, "is_temporary_id")

	logged := data.Clone()
	logged["id"] = id
	if temp {
		logged["is_temporary_id"] = true
	}

	c := &change.Change{
		EntityType: t,
		EntityID:   id,
		Action:     change.ActionCreate,
		Payload:    logged,
		CreatedAt:  now,
	}
	if err := tx.AppendChange(ctx, c); err != nil {
		return nil, err
	}

	rec := &entity.Record{
		ID:        id,
		Type:      t,
		Temporary: temp,
		Payload:   data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Put(ctx, t, rec); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Recorder) update(ctx context.Context, tx store.Tx, t entity.Type, id string, payload entity.Payload, now time.Time) (*change.Change, error) {
	rec, err := tx.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted() {
		return nil, fmt.Errorf("update deleted %s %s: %w", t, id, entity.ErrNotFound)
	}

	data := payload.Clone()
	if data == nil {
		data = entity.Payload{}
	}
	delete(data, "id")
	delete(data, "is_temporary_id")

	logged := data.Clone()
	logged["id"] = id

	c := &change.Change{
		EntityType: t,
		EntityID:   id,
		Action:     change.ActionUpdate,
		Payload:    logged,
		CreatedAt:  now,
	}
	if err := tx.AppendChange(ctx, c); err != nil {
		return nil, err
	}

	rec.Payload = data
	rec.UpdatedAt = now
	if err := tx.Put(ctx, t, rec); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Recorder) delete(ctx context.Context, tx store.Tx, t entity.Type, id string, now time.Time) (*change.Change, error) {
	rec, err := tx.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted() {
		return nil, nil
	}

	c := &change.Change{
		EntityType: t,
		EntityID:   id,
		Action:     change.ActionDelete,
		Payload:    entity.Payload{"id": id},
		CreatedAt:  now,
	}
	if err := tx.AppendChange(ctx, c); err != nil {
		return nil, err
	}
	if err := tx.SoftDelete(ctx, t, id); err != nil {
		return nil, err
	}
	return c, nil
}
