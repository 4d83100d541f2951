package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
	"pharmasync/internal/domain/store"
)

// Status - снимок состояния движка для вывода.
type Status struct {
	Online         bool                          `json:"online" yaml:"online"`
	State          State                         `json:"state" yaml:"state"`
	Session        Session                       `json:"session" yaml:"session"`
	PendingChanges int                           `json:"pending_changes" yaml:"pending_changes"`
	LastSync       *time.Time                    `json:"last_sync,omitempty" yaml:"last_sync,omitempty"`
	Stores         map[entity.Type]entity.Counts `json:"stores" yaml:"stores"`
}

// PendingChangeCount считает изменения, не принятые сервером.
func (o *Orchestrator) PendingChangeCount(ctx context.Context) (int, error) {
	n, err := o.store.CountChanges(ctx, change.Unresolved...)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

// LastSyncTime возвращает время окончания последней сессии или nil.
func (o *Orchestrator) LastSyncTime(ctx context.Context) (*time.Time, error) {
	return o.metaTime(ctx, metaLastSync)
}

// LastStoreSync возвращает время последней загрузки коллекции t.
func (o *Orchestrator) LastStoreSync(ctx context.Context, t entity.Type) (*time.Time, error) {
	return o.metaTime(ctx, metaLastSyncPrefix+string(t))
}

func (o *Orchestrator) metaTime(ctx context.Context, key string) (*time.Time, error) {
	raw, ok, err := o.store.GetMeta(ctx, key)
	if err != nil {
		return nil, storageErr(err)
	}
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	return &t, nil
}

func (o *Orchestrator) StoreCounts(ctx context.Context) (map[entity.Type]entity.Counts, error) {
	counts := make(map[entity.Type]entity.Counts)
	for _, t := range entity.All() {
		c, err := o.store.Count(ctx, t)
		if err != nil {
			return nil, storageErr(err)
		}
		counts[t] = c
	}
	return counts, nil
}

func (o *Orchestrator) Stats(ctx context.Context) (change.Stats, error) {
	changes, err := o.store.Changes(ctx, change.Unresolved...)
	if err != nil {
		return change.Stats{}, storageErr(err)
	}
	return change.Summarize(changes), nil
}

func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	pending, err := o.PendingChangeCount(ctx)
	if err != nil {
		return nil, err
	}
	last, err := o.LastSyncTime(ctx)
	if err != nil {
		return nil, err
	}
	stores, err := o.StoreCounts(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Online:         o.IsOnline(),
		State:          o.State(),
		Session:        o.Session(),
		PendingChanges: pending,
		LastSync:       last,
		Stores:         stores,
	}, nil
}

// RetryFailed возвращает упавшие изменения в pending со сброшенным счетчиком попыток.
func (o *Orchestrator) RetryFailed(ctx context.Context) (int, error) {
	if err := o.checkIdle(ctx); err != nil {
		return 0, err
	}

	var n int
	err := o.store.InTx(ctx, func(tx store.Tx) error {
		failed, err := tx.Changes(ctx, change.StatusFailed)
		if err != nil {
			return err
		}
		for i := range failed {
			c := &failed[i]
			c.Status = change.StatusPending
			c.RetryCount = 0
			c.LastError = ""
			if err := tx.UpdateChange(ctx, c); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, storageErr(err)
	}
	o.log.Info("requeued failed changes", "count", n)
	return n, nil
}

// Discard удаляет несинхронизированное изменение. Отмена создания временной
// записи удаляет и саму запись, и все изменения по ней.
func (o *Orchestrator) Discard(ctx context.Context, seq int64) error {
	if err := o.checkIdle(ctx); err != nil {
		return err
	}

	err := o.store.InTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetChange(ctx, seq)
		if err != nil {
			return err
		}
		if err := tx.DeleteChange(ctx, seq); err != nil {
			return err
		}
		if c.Action != change.ActionCreate || !entity.IsTemporaryID(c.EntityID) {
			return nil
		}

		if err := tx.Remove(ctx, c.EntityType, c.EntityID); err != nil {
			return err
		}
		rest, err := tx.Changes(ctx, change.Unresolved...)
		if err != nil {
			return err
		}
		for _, other := range rest {
			if other.EntityType == c.EntityType && other.EntityID == c.EntityID {
				if err := tx.DeleteChange(ctx, other.Seq); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if errors.Is(err, change.ErrNotFound) {
		return err
	}
	if err != nil {
		return storageErr(err)
	}
	o.log.Info("discarded change", "seq", seq)
	return nil
}
