package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pharmasync/internal/domain/entity"
)

// ParsePayload объединяет JSON объект из --data с парами key=value из
// --set. Значения, которые разбираются как JSON, сохраняют тип, остальное - строки.
func ParsePayload(data string, sets []string) (entity.Payload, error) {
	p := entity.Payload{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("--data is not a JSON object: %w", err)
		}
	}
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--set %q: expected key=value", kv)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		p[key] = v
	}
	return p, nil
}

// ParseItem читает строку товара вида product=<id>,qty=<n>[,price=<p>].
func ParseItem(s string) (map[string]any, error) {
	item := map[string]any{}
	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("item %q: expected key=value pairs", s)
		}
		switch key {
		case "product":
			item["product_id"] = val
		case "qty", "quantity":
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("item %q: bad quantity: %w", s, err)
			}
			item["quantity"] = n
		case "price":
			n, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("item %q: bad price: %w", s, err)
			}
			item["unit_price"] = n
		default:
			return nil, fmt.Errorf("item %q: unknown key %q", s, key)
		}
	}
	if _, ok := item["product_id"]; !ok {
		return nil, fmt.Errorf("item %q: product is required", s)
	}
	if _, ok := item["quantity"]; !ok {
		return nil, fmt.Errorf("item %q: qty is required", s)
	}
	return item, nil
}

// Since выводит время, прошедшее с t, для строки статуса.
func Since(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	d := now.Sub(*t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d d ago", int(d.Hours()/24))
	}
}
