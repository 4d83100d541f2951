package engine

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrOffline           = errors.New("network is offline")
	ErrNetwork           = errors.New("network error")
	ErrReconciliationGap = errors.New("change references an unreconciled temporary id")
	ErrStorage           = errors.New("local store failure")
	ErrIllegalTransition = errors.New("illegal sync state transition")
)

// StatusError - ошибка, которую вернул удаленный API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Message)
}

// Class говорит оркестратору, можно ли повторить упавшее изменение.
type Class int

const (
	ClassTransient Class = iota
	ClassPermanent
)

func (c Class) String() string {
	if c == ClassPermanent {
		return "permanent"
	}
	return "transient"
}

// Classify относит ошибку сервера к политике повторов. Постоянны только
// отказы по вине клиента. Сетевые сбои, таймауты и ошибки сервера
// стоит повторить.
func Classify(err error) Class {
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
		switch se.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return ClassTransient
		}
		return ClassPermanent
	}
	return ClassTransient
}

// IsNotFound проверяет, ответил ли сервер 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

func storageErr(err error) error {
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
