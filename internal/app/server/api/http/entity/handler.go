package entity

import (
	"context"
	"errors"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"pharmasync/internal/domain/entity"
)

type Handler struct {
	service    entity.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service entity.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

// SetupRoutes регистрирует CRUD операции для каждого типа сущности.
func (h *Handler) SetupRoutes(api huma.API) {
	for _, t := range entity.All() {
		huma.Register(api, h.listOp(t), h.list(t))
		huma.Register(api, h.createOp(t), h.create(t))
		huma.Register(api, h.updateOp(t), h.update(t))
		huma.Register(api, h.deleteOp(t), h.delete(t))
	}
}

func (h *Handler) list(t entity.Type) func(context.Context, *struct{}) (*listOutput, error) {
	return func(ctx context.Context, _ *struct{}) (*listOutput, error) {
		res, err := h.service.List(ctx, t)
		if err != nil {
			return nil, toHumaErr(err)
		}
		return &listOutput{Body: res}, nil
	}
}

func (h *Handler) create(t entity.Type) func(context.Context, *createInput) (*recordOutput, error) {
	return func(ctx context.Context, input *createInput) (*recordOutput, error) {
		rec, err := h.service.Create(ctx, t, input.Body.Data, input.IdempotencyKey)
		if err != nil {
			return nil, toHumaErr(err)
		}
		return &recordOutput{Body: rec}, nil
	}
}

func (h *Handler) update(t entity.Type) func(context.Context, *updateInput) (*recordOutput, error) {
	return func(ctx context.Context, input *updateInput) (*recordOutput, error) {
		rec, err := h.service.Update(ctx, t, input.ID, input.Body.Data)
		if err != nil {
			return nil, toHumaErr(err)
		}
		return &recordOutput{Body: rec}, nil
	}
}

func (h *Handler) delete(t entity.Type) func(context.Context, *deleteInput) (*struct{}, error) {
	return func(ctx context.Context, input *deleteInput) (*struct{}, error) {
		if err := h.service.Delete(ctx, t, input.ID); err != nil {
			return nil, toHumaErr(err)
		}
		return nil, nil
	}
}

// toHumaErr переводит доменные ошибки в ответы huma.
func toHumaErr(err error) error {
	var verr *entity.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]string, 0, len(verr.Fields))
		for f := range verr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		details := make([]error, 0, len(fields))
		for _, f := range fields {
			details = append(details, &huma.ErrorDetail{
				Location: "body.data." + f,
				Message:  verr.Fields[f],
			})
		}
		return huma.Error422UnprocessableEntity("validation failed", details...)
	case errors.Is(err, entity.ErrInvalidPayload):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, entity.ErrNotFound):
		return huma.Error404NotFound("record not found")
	case errors.Is(err, entity.ErrDuplicate):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, entity.ErrInvalidType):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError("internal error")
	}
}
