package entity

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

// MockRepository - мок интерфейса Repository для тестов
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context, t Type) ([]Record, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Record), args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, t Type, id string) (*Record, error) {
	args := m.Called(ctx, t, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) FindByIdempotencyKey(ctx context.Context, t Type, key string) (*Record, error) {
	args := m.Called(ctx, t, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockRepository) ExistsByField(ctx context.Context, t Type, field, value, excludeID string) (bool, error) {
	args := m.Called(ctx, t, field, value, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, rec *Record, key string, adjust []StockAdjustment) error {
	args := m.Called(ctx, rec, key, adjust)
	return args.Error(0)
}

func (m *MockRepository) Update(ctx context.Context, rec *Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, t Type, id string) error {
	args := m.Called(ctx, t, id)
	return args.Error(0)
}

func newTestService(repo Repository) *Service {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewService(repo, log)
	s.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("returns records with total", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("List", ctx, Customers).Return([]Record{{ID: "a"}, {ID: "b"}}, nil)

		resp, err := newTestService(repo).List(ctx, Customers)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Total)
		repo.AssertExpectations(t)
	})

	t.Run("empty collection is not nil", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("List", ctx, Suppliers).Return(nil, nil)

		resp, err := newTestService(repo).List(ctx, Suppliers)
		require.NoError(t, err)
		assert.NotNil(t, resp.Records)
		assert.Zero(t, resp.Total)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := newTestService(new(MockRepository)).List(ctx, Type("widgets"))
		assert.ErrorIs(t, err, ErrInvalidType)
	})
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("strips client fields and stores product", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("FindByIdempotencyKey", ctx, Products, "c1-1").Return(nil, ErrNotFound)
		repo.On("ExistsByField", ctx, Products, "name", "Paracetamol", "").Return(false, nil)
		repo.On("Create", ctx, mock.MatchedBy(func(r *Record) bool {
			_, hasID := r.Payload["id"]
			_, hasTmp := r.Payload["is_temporary_id"]
			return r.Type == Products && r.ID != "" && !hasID && !hasTmp
		}), "c1-1", []StockAdjustment(nil)).Return(nil)

		rec, err := newTestService(repo).Create(ctx, Products, Payload{
			"id":              "tmp-1",
			"is_temporary_id": true,
			"name":            "Paracetamol",
			"price":           500.0,
		}, "c1-1")
		require.NoError(t, err)
		assert.Equal(t, "Paracetamol", rec.Payload.String("name"))
		assert.False(t, IsTemporaryID(rec.ID))
		repo.AssertExpectations(t)
	})

	t.Run("replayed idempotency key returns first record", func(t *testing.T) {
		repo := new(MockRepository)
		first := &Record{ID: "srv-42", Type: Products, Payload: Payload{"name": "Paracetamol"}}
		repo.On("FindByIdempotencyKey", ctx, Products, "c1-1").Return(first, nil)

		rec, err := newTestService(repo).Create(ctx, Products, Payload{"name": "Paracetamol"}, "c1-1")
		require.NoError(t, err)
		assert.Equal(t, "srv-42", rec.ID)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("validation failure", func(t *testing.T) {
		repo := new(MockRepository)

		_, err := newTestService(repo).Create(ctx, Products, Payload{"price": -1.0}, "")
		assert.ErrorIs(t, err, ErrInvalidPayload)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "required", verr.Fields["name"])
		assert.Equal(t, "gte", verr.Fields["price"])
	})

	t.Run("duplicate barcode", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ExistsByField", ctx, Products, "barcode", "123", "").Return(true, nil)

		_, err := newTestService(repo).Create(ctx, Products, Payload{"name": "Aspirin", "barcode": "123"}, "")
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("sale passes stock adjustments", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", ctx, mock.Anything, "", []StockAdjustment{{ProductID: "p1", Delta: -3}}).Return(nil)

		_, err := newTestService(repo).Create(ctx, Sales, Payload{
			"items": []any{map[string]any{"product_id": "p1", "quantity": 3.0, "unit_price": 10.0}},
			"total": 30.0,
		}, "")
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("concurrent replay resolves to stored record", func(t *testing.T) {
		repo := new(MockRepository)
		stored := &Record{ID: "srv-7", Type: Customers}
		repo.On("FindByIdempotencyKey", ctx, Customers, "k").Return(nil, ErrNotFound).Once()
		repo.On("Create", ctx, mock.Anything, "k", []StockAdjustment(nil)).Return(ErrDuplicate)
		repo.On("FindByIdempotencyKey", ctx, Customers, "k").Return(stored, nil).Once()

		rec, err := newTestService(repo).Create(ctx, Customers, Payload{"name": "Ana"}, "k")
		require.NoError(t, err)
		assert.Equal(t, "srv-7", rec.ID)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces payload", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Get", ctx, Customers, "c1").Return(&Record{ID: "c1", Type: Customers, Payload: Payload{"name": "Old"}}, nil)
		repo.On("Update", ctx, mock.MatchedBy(func(r *Record) bool {
			return r.Payload.String("name") == "New"
		})).Return(nil)

		rec, err := newTestService(repo).Update(ctx, Customers, "c1", Payload{"name": "New"})
		require.NoError(t, err)
		assert.Equal(t, "New", rec.Payload.String("name"))
		assert.Equal(t, 2025, rec.UpdatedAt.Year())
	})

	t.Run("missing record", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Get", ctx, Customers, "nope").Return(nil, ErrNotFound)

		_, err := newTestService(repo).Update(ctx, Customers, "nope", Payload{"name": "New"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	repo.On("Delete", ctx, Sales, "s1").Return(nil)
	repo.On("Delete", ctx, Sales, "s2").Return(ErrNotFound)

	s := newTestService(repo)
	assert.NoError(t, s.Delete(ctx, Sales, "s1"))
	assert.ErrorIs(t, s.Delete(ctx, Sales, "s2"), ErrNotFound)
}
