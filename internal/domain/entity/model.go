package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix отмечает id, выданные локально записям, созданным офлайн.
const TempIDPrefix = "tmp-"

// Payload - поля сущности в виде, разобранном из JSON.
type Payload map[string]any

// Record - экземпляр сущности, хранится локально и отдается сервером.
type Record struct {
	ID        string     `json:"id"`
	Type      Type       `json:"type"`
	Temporary bool       `json:"is_temporary_id,omitempty"`
	Payload   Payload    `json:"data"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Filter сужает выборки вроде GetAll.
type Filter struct {
	ShowDeleted bool
}

// Counts описывает локальную коллекцию.
type Counts struct {
	Total    int `json:"total" yaml:"total"`
	Unsynced int `json:"unsynced" yaml:"unsynced"`
	Deleted  int `json:"deleted" yaml:"deleted"`
}

// NewTempID возвращает новый временный id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTemporaryID проверяет, выдан ли id локально.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// IsDeleted проверяет, помечена ли запись удаленной.
func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Clone возвращает глубокую копию записи.
func (r Record) Clone() Record {
	r.Payload = r.Payload.Clone()
	if r.DeletedAt != nil {
		at := *r.DeletedAt
		r.DeletedAt = &at
	}
	return r
}

// Clone глубоко копирует вложенные map и срезы.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return map[string]any(Payload(x).Clone())
	case Payload:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// String возвращает строку по ключу key или "".
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Number возвращает число по ключу key.
func (p Payload) Number(key string) (float64, bool) {
	switch n := p[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Items возвращает строки продаж, возвратов, поставок и рецептов.
func (p Payload) Items() []map[string]any {
	raw, ok := p["items"].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}
