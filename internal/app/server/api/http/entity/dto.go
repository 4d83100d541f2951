package entity

import "pharmasync/internal/domain/entity"

type listOutput struct {
	Body entity.ListResponse
}

type createInput struct {
	IdempotencyKey string `header:"Idempotency-Key" maxLength:"128" doc:"Replays with the same key return the first result"`
	Body           entity.Request
}

type updateInput struct {
	ID   string `path:"id" doc:"Record id"`
	Body entity.Request
}

type deleteInput struct {
	ID string `path:"id" doc:"Record id"`
}

type recordOutput struct {
	Body *entity.Record
}
