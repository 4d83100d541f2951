package change

import "errors"

var (
	ErrInvalidAction = errors.New("invalid change action")
	ErrNotFound      = errors.New("change not found")
)
