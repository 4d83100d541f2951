package client

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pharmasync/internal/app/client/engine"
	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
)

const (
	saleNumberPrefix   = "VNT-"
	returnNumberPrefix = "RET-"
)

// Get перед чтением подставляет серверный id вместо временного.
func (a *App) Get(ctx context.Context, t entity.Type, id string) (*entity.Record, error) {
	rec, err := a.store.Get(ctx, t, a.reconciler.Resolve(id))
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted() {
		return nil, fmt.Errorf("%s %s: %w", t, id, entity.ErrNotFound)
	}
	return rec, nil
}

func (a *App) List(ctx context.Context, t entity.Type, filter entity.Filter) ([]entity.Record, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return a.store.GetAll(ctx, t, filter)
}

// Create сохраняет новую запись. При наличии связи она сразу уходит на сервер,
// иначе сохраняется под временным id до следующей синхронизации.
func (a *App) Create(ctx context.Context, t entity.Type, payload entity.Payload) (*entity.Record, error) {
	payload, _ = a.reconciler.RewritePayload(payload)
	if err := a.validator.Validate(t, payload); err != nil {
		return nil, err
	}

	direct, err := a.direct(ctx, payload)
	if err != nil {
		return nil, err
	}
	if direct {
		rec, err := a.remote.Create(ctx, t, payload, a.clientID+"-"+uuid.NewString())
		switch {
		case err == nil:
			if err := a.store.Put(ctx, t, rec); err != nil {
				return nil, err
			}
			return rec, nil
		case engine.Classify(err) == engine.ClassPermanent:
			return nil, err
		}
		a.log.Warn("remote create failed, recording offline", "type", t, "error", err)
	}

	// поставки, оформленные офлайн, ждут проверки на сервере
	if _, ok := payload["is_validated"]; t == entity.Supplies && !ok {
		payload = payload.Clone()
		payload["is_validated"] = false
	}

	c, err := a.recorder.Record(ctx, t, change.ActionCreate, "", payload)
	if err != nil {
		return nil, err
	}
	return a.store.Get(ctx, t, c.EntityID)
}

// Update заменяет поля записи.
func (a *App) Update(ctx context.Context, t entity.Type, id string, payload entity.Payload) (*entity.Record, error) {
	id = a.reconciler.Resolve(id)
	payload, _ = a.reconciler.RewritePayload(payload)
	if err := a.validator.Validate(t, payload); err != nil {
		return nil, err
	}

	direct, err := a.directFor(ctx, t, id, payload)
	if err != nil {
		return nil, err
	}
	if direct {
		rec, err := a.remote.Update(ctx, t, id, payload)
		switch {
		case err == nil:
			if err := a.store.Put(ctx, t, rec); err != nil {
				return nil, err
			}
			return rec, nil
		case engine.Classify(err) == engine.ClassPermanent:
			return nil, err
		}
		a.log.Warn("remote update failed, recording offline", "type", t, "id", id, "error", err)
	}

	if _, err := a.recorder.Record(ctx, t, change.ActionUpdate, id, payload); err != nil {
		return nil, err
	}
	return a.store.Get(ctx, t, id)
}

// Delete удаляет запись, локально помечая ее удаленной до подтверждения сервера.
func (a *App) Delete(ctx context.Context, t entity.Type, id string) error {
	id = a.reconciler.Resolve(id)

	direct, err := a.directFor(ctx, t, id, nil)
	if err != nil {
		return err
	}
	if direct {
		err := a.remote.Delete(ctx, t, id)
		if err == nil || engine.IsNotFound(err) {
			return a.store.Remove(ctx, t, id)
		}
		if engine.Classify(err) == engine.ClassPermanent {
			return err
		}
		a.log.Warn("remote delete failed, recording offline", "type", t, "id", id, "error", err)
	}

	_, err = a.recorder.Record(ctx, t, change.ActionDelete, id, nil)
	return err
}

// direct проверяет, можно ли сразу отправить payload на сервер. Пока идет
// сессия, в том числе в другом процессе, запись уходит в очередь.
func (a *App) direct(ctx context.Context, payload entity.Payload) (bool, error) {
	if !a.monitor.Online() {
		return false, nil
	}
	busy, err := a.orch.SessionActive(ctx)
	if err != nil {
		return false, err
	}
	if busy {
		return false, nil
	}
	return len(a.reconciler.Unresolved(payload, "")) == 0, nil
}

// directFor - то же для существующей записи, у которой не должно быть
// изменений в очереди.
func (a *App) directFor(ctx context.Context, t entity.Type, id string, payload entity.Payload) (bool, error) {
	if entity.IsTemporaryID(id) {
		return false, nil
	}
	if ok, err := a.direct(ctx, payload); err != nil || !ok {
		return false, err
	}
	queued, err := a.store.UnresolvedIDs(ctx, t)
	if err != nil {
		return false, err
	}
	return !queued[id], nil
}

// CreateSale нумерует продажу и списывает проданное количество
// с локального остатка. Сервер списывает то же самое при получении продажи.
func (a *App) CreateSale(ctx context.Context, payload entity.Payload) (*entity.Record, error) {
	return a.createMovement(ctx, entity.Sales, "sale_number", saleNumberPrefix, payload)
}

// CreateReturn нумерует возврат и возвращает количество на остаток.
func (a *App) CreateReturn(ctx context.Context, payload entity.Payload) (*entity.Record, error) {
	return a.createMovement(ctx, entity.Returns, "return_number", returnNumberPrefix, payload)
}

func (a *App) createMovement(ctx context.Context, t entity.Type, numberKey, prefix string, payload entity.Payload) (*entity.Record, error) {
	payload = payload.Clone()
	if payload == nil {
		payload = entity.Payload{}
	}
	if payload.String(numberKey) == "" {
		number, err := documentNumber(prefix)
		if err != nil {
			return nil, err
		}
		payload[numberKey] = number
	}
	if _, ok := payload["total"]; !ok && t == entity.Sales {
		payload["total"] = lineTotal(payload)
	}

	rec, err := a.Create(ctx, t, payload)
	if err != nil {
		return nil, err
	}

	for _, adj := range entity.StockAdjustments(t, rec.Payload) {
		if err := a.adjustStock(ctx, adj); err != nil {
			a.log.Warn("failed to adjust local stock", "product_id", adj.ProductID, "delta", adj.Delta, "error", err)
		}
	}
	return rec, nil
}

// adjustStock меняет локальный остаток товара без записи в журнал.
func (a *App) adjustStock(ctx context.Context, adj entity.StockAdjustment) error {
	rec, err := a.store.Get(ctx, entity.Products, a.reconciler.Resolve(adj.ProductID))
	if errors.Is(err, entity.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	stock, _ := rec.Payload.Number("quantity_in_stock")
	stock += float64(adj.Delta)
	if stock < 0 {
		stock = 0
	}
	rec.Payload["quantity_in_stock"] = stock
	return a.store.Put(ctx, entity.Products, rec)
}

func lineTotal(p entity.Payload) float64 {
	total := decimal.Zero
	for _, item := range p.Items() {
		qty, _ := entity.Payload(item).Number("quantity")
		price, _ := entity.Payload(item).Number("unit_price")
		total = total.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(qty)))
	}
	return total.Round(2).InexactFloat64()
}

func documentNumber(prefix string) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate document number: %w", err)
	}
	return prefix + strings.ToUpper(hex.EncodeToString(b)), nil
}
