package entity

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"pharmasync/internal/domain/entity"
)

func (h *Handler) listOp(t entity.Type) huma.Operation {
	return huma.Operation{
		OperationID: string(t) + "-list",
		Method:      http.MethodGet,
		Path:        t.Endpoint(),
		Summary:     "List " + t.DisplayName(),
		Tags:        []string{string(t)},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp(t entity.Type) huma.Operation {
	return huma.Operation{
		OperationID:   string(t) + "-create",
		Method:        http.MethodPost,
		Path:          t.Endpoint(),
		Summary:       "Create " + t.DisplayName(),
		Description:   "Creates a record. Requests carrying an Idempotency-Key already seen return the original record.",
		Tags:          []string{string(t)},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
		Middlewares:   h.middleware,
	}
}

func (h *Handler) updateOp(t entity.Type) huma.Operation {
	return huma.Operation{
		OperationID: string(t) + "-update",
		Method:      http.MethodPut,
		Path:        t.Endpoint() + "/{id}",
		Summary:     "Update " + t.DisplayName(),
		Tags:        []string{string(t)},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp(t entity.Type) huma.Operation {
	return huma.Operation{
		OperationID: string(t) + "-delete",
		Method:      http.MethodDelete,
		Path:        t.Endpoint() + "/{id}",
		Summary:     "Delete " + t.DisplayName(),
		Tags:        []string{string(t)},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}
