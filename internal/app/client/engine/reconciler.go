package engine

import (
	"maps"
	"sync"

	"pharmasync/internal/domain/entity"
)

// Reconciler сопоставляет временные id с выданными сервером. Сопоставления
// живут до конца процесса.
type Reconciler struct {
	mu  sync.RWMutex
	ids map[string]string
}

func NewReconciler() *Reconciler {
	return &Reconciler{ids: make(map[string]string)}
}

func (r *Reconciler) RegisterMapping(tempID, serverID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[tempID] = serverID
}

// Resolve возвращает серверный id для id или сам id, если сопоставления нет.
func (r *Reconciler) Resolve(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if srv, ok := r.ids[id]; ok {
		return srv
	}
	return id
}

// Known проверяет, сопоставлен ли id.
func (r *Reconciler) Known(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[id]
	return ok
}

// Mapped возвращает копию всех сопоставлений.
func (r *Reconciler) Mapped() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.ids)
}

// RewritePayload возвращает копию p, где сопоставленные временные id
// заменены, и признак того, что что-то изменилось.
func (r *Reconciler) RewritePayload(p entity.Payload) (entity.Payload, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return rewritePayload(p, r.ids)
}

// Unresolved перечисляет временные id из p, которые еще не сопоставлены,
// кроме self.
func (r *Reconciler) Unresolved(p entity.Payload, self string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	walkStrings(map[string]any(p), func(s string) {
		if s == self || !entity.IsTemporaryID(s) {
			return
		}
		if _, ok := r.ids[s]; !ok {
			out = append(out, s)
		}
	})
	return out
}

func rewritePayload(p entity.Payload, ids map[string]string) (entity.Payload, bool) {
	if p == nil || len(ids) == 0 {
		return p, false
	}
	out, changed := rewriteValue(map[string]any(p), ids)
	return entity.Payload(out.(map[string]any)), changed
}

func rewriteValue(v any, ids map[string]string) (any, bool) {
	switch x := v.(type) {
	case string:
		if srv, ok := ids[x]; ok {
			return srv, true
		}
		return x, false
	case entity.Payload:
		return rewriteValue(map[string]any(x), ids)
	case map[string]any:
		out := make(map[string]any, len(x))
		changed := false
		for k, item := range x {
			nv, c := rewriteValue(item, ids)
			out[k] = nv
			changed = changed || c
		}
		return out, changed
	case []any:
		out := make([]any, len(x))
		changed := false
		for i, item := range x {
			nv, c := rewriteValue(item, ids)
			out[i] = nv
			changed = changed || c
		}
		return out, changed
	default:
		return v, false
	}
}

func walkStrings(v any, fn func(string)) {
	switch x := v.(type) {
	case string:
		fn(x)
	case entity.Payload:
		walkStrings(map[string]any(x), fn)
	case map[string]any:
		for _, item := range x {
			walkStrings(item, fn)
		}
	case []any:
		for _, item := range x {
			walkStrings(item, fn)
		}
	}
}
