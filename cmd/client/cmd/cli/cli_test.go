package cli

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmasync/internal/domain/entity"
)

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload(`{"name":"Paracetamol","price":2.5}`, []string{
		"quantity_in_stock=10",
		"barcode=00123",
		"description=500 mg tablets",
		`tags=["otc"]`,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.Payload{
		"name":              "Paracetamol",
		"price":             2.5,
		"quantity_in_stock": 10.0,
		"barcode":           "00123",
		"description":       "500 mg tablets",
		"tags":              []any{"otc"},
	}, p)

	_, err = ParsePayload(`[1]`, nil)
	assert.Error(t, err)
	_, err = ParsePayload("", []string{"novalue"})
	assert.Error(t, err)
}

func TestParseItem(t *testing.T) {
	item, err := ParseItem("product=p-1,qty=3,price=2.5")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"product_id": "p-1", "quantity": 3.0, "unit_price": 2.5}, item)

	tests := []string{"qty=1", "product=p-1", "product=p-1,qty=x", "product=p-1,qty=1,color=red", "p-1"}
	for _, in := range tests {
		_, err := ParseItem(in)
		assert.Error(t, err, in)
	}
}

func TestSince(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	assert.Equal(t, "never", Since(nil, now))
	assert.Equal(t, "just now", Since(at(20*time.Second), now))
	assert.Equal(t, "5 min ago", Since(at(5*time.Minute+10*time.Second), now))
	assert.Equal(t, "2 h ago", Since(at(2*time.Hour+30*time.Minute), now))
	assert.Equal(t, "3 d ago", Since(at(75*time.Hour), now))
}

func TestEnv_Print(t *testing.T) {
	v := map[string]int{"pending": 2}

	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "{\n  \"pending\": 2\n}\n"},
		{FormatYAML, "pending: 2\n"},
		{FormatText, "2 pending\n"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		env := &Env{Format: tt.format, Out: &buf}
		err := env.Print(v, func(w io.Writer) { _, _ = io.WriteString(w, "2 pending\n") })
		require.NoError(t, err)
		assert.Equal(t, tt.want, buf.String())
	}
}

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoApp)
}
