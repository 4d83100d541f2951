package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidType    = errors.New("invalid entity type")
	ErrInvalidPayload = errors.New("invalid record payload")
	ErrDuplicate      = errors.New("record already exists")
)

// ValidationError содержит ошибочные поля payload по их JSON именам.
type ValidationError struct {
	Type   Type
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Type, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidPayload
}
