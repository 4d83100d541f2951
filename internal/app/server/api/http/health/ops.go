package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health check",
		Description: "Used by clients as the connectivity probe. Does not require a token.",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}
