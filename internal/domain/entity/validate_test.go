package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		typ     Type
		payload Payload
		fields  map[string]string
	}{
		{
			name:    "valid product",
			typ:     Products,
			payload: Payload{"name": "Ibuprofen", "price": 12.5, "quantity_in_stock": 10.0},
		},
		{
			name:    "price as string decimal",
			typ:     Products,
			payload: Payload{"name": "Ibuprofen", "price": "12.50"},
		},
		{
			name:    "negative stock",
			typ:     Products,
			payload: Payload{"name": "Ibuprofen", "quantity_in_stock": -1.0},
			fields:  map[string]string{"quantity_in_stock": "gte"},
		},
		{
			name:    "customer email",
			typ:     Customers,
			payload: Payload{"name": "Ana", "email": "not-an-email"},
			fields:  map[string]string{"email": "email"},
		},
		{
			name:    "sale without items",
			typ:     Sales,
			payload: Payload{"total": 10.0},
			fields:  map[string]string{"items": "required"},
		},
		{
			name: "sale line quantity",
			typ:  Sales,
			payload: Payload{"items": []any{
				map[string]any{"product_id": "p1", "quantity": 0.0},
			}},
			fields: map[string]string{"items[0].quantity": "gt"},
		},
		{
			name:    "empty payload",
			typ:     Categories,
			payload: Payload{},
			fields:  map[string]string{"data": "required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.typ, tt.payload)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.fields, verr.Fields)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestValidator_TypeMismatch(t *testing.T) {
	err := NewValidator().Validate(Products, Payload{"name": "X", "quantity_in_stock": "many"})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestStockAdjustments(t *testing.T) {
	items := []any{
		map[string]any{"product_id": "p1", "quantity": 2.0},
		map[string]any{"product_id": "", "quantity": 5.0},
		map[string]any{"product_id": "p2", "quantity": 1.0},
	}

	assert.Equal(t,
		[]StockAdjustment{{ProductID: "p1", Delta: -2}, {ProductID: "p2", Delta: -1}},
		StockAdjustments(Sales, Payload{"items": items}))
	assert.Equal(t,
		[]StockAdjustment{{ProductID: "p1", Delta: 2}, {ProductID: "p2", Delta: 1}},
		StockAdjustments(Returns, Payload{"items": items}))
	assert.Nil(t, StockAdjustments(Supplies, Payload{"items": items}))
}
