package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

type pingOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func setup(t *testing.T, token string) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	mw := New(api, token, slog.Default())

	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
		Middlewares: huma.Middlewares{mw.Middleware()},
	}, func(context.Context, *struct{}) (*pingOutput, error) {
		out := &pingOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
	return api
}

func TestAuth_Middleware(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		header     string
		wantStatus int
	}{
		{name: "valid token", token: "secret", header: "Authorization: Bearer secret", wantStatus: http.StatusOK},
		{name: "wrong token", token: "secret", header: "Authorization: Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "no scheme", token: "secret", header: "Authorization: secret", wantStatus: http.StatusUnauthorized},
		{name: "no header", token: "secret", wantStatus: http.StatusUnauthorized},
		{name: "auth disabled", token: "", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setup(t, tt.token)

			var args []any
			if tt.header != "" {
				args = append(args, tt.header)
			}
			resp := api.Get("/ping", args...)
			assert.Equal(t, tt.wantStatus, resp.Code)
		})
	}
}
