package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"pharmasync/internal/domain/entity"
)

// newTestRepository подключается к PHARMASYNC_TEST_DATABASE_URI и очищает
// таблицу entities. Без переменной тест пропускается.
func newTestRepository(t *testing.T) *EntityRepository {
	t.Helper()
	uri := os.Getenv("PHARMASYNC_TEST_DATABASE_URI")
	if uri == "" {
		t.Skip("PHARMASYNC_TEST_DATABASE_URI is not set")
	}

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := New(ctx, uri, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.Pool().Exec(ctx, `TRUNCATE entities`)
	require.NoError(t, err)
	return NewEntityRepository(st, log)
}

func newRecord(t entity.Type, payload entity.Payload) *entity.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entity.Record{ID: uuid.NewString(), Type: t, Payload: payload, CreatedAt: now, UpdatedAt: now}
}

func TestEntityRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	rec := newRecord(entity.Customers, entity.Payload{"name": "Ana", "phone": "555"})
	require.NoError(t, repo.Create(ctx, rec, "client-1", nil))

	got, err := repo.Get(ctx, entity.Customers, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Payload.String("name"))
	assert.Equal(t, entity.Customers, got.Type)

	byKey, err := repo.FindByIdempotencyKey(ctx, entity.Customers, "client-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byKey.ID)

	err = repo.Create(ctx, newRecord(entity.Customers, entity.Payload{"name": "Ana"}), "client-1", nil)
	assert.ErrorIs(t, err, entity.ErrDuplicate)

	got.Payload["name"] = "Ana Maria"
	require.NoError(t, repo.Update(ctx, got))

	list, err := repo.List(ctx, entity.Customers)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana Maria", list[0].Payload.String("name"))

	require.NoError(t, repo.Delete(ctx, entity.Customers, rec.ID))
	assert.ErrorIs(t, repo.Delete(ctx, entity.Customers, rec.ID), entity.ErrNotFound)
	_, err = repo.Get(ctx, entity.Customers, rec.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEntityRepository_StockAdjustments(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	prod := newRecord(entity.Products, entity.Payload{"name": "Ibuprofen", "barcode": "779", "quantity_in_stock": 5})
	require.NoError(t, repo.Create(ctx, prod, "", nil))

	exists, err := repo.ExistsByField(ctx, entity.Products, "barcode", "779", "")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.ExistsByField(ctx, entity.Products, "barcode", "779", prod.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	sale := newRecord(entity.Sales, entity.Payload{"sale_number": "VNT-1"})
	require.NoError(t, repo.Create(ctx, sale, "", []entity.StockAdjustment{
		{ProductID: prod.ID, Delta: -8},
		{ProductID: "unknown", Delta: -1},
	}))

	got, err := repo.Get(ctx, entity.Products, prod.ID)
	require.NoError(t, err)
	stock, _ := got.Payload.Number("quantity_in_stock")
	assert.Equal(t, 0.0, stock)
}
