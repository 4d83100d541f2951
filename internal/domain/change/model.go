package change

import (
	"fmt"
	"time"

	"pharmasync/internal/domain/entity"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Validate() error {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidAction, string(a))
}

func (a Action) String() string {
	return string(a)
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusSynced   Status = "synced"
	StatusFailed   Status = "failed"
)

// Unresolved - статусы изменений, еще не принятых сервером.
var Unresolved = []Status{StatusPending, StatusInFlight, StatusFailed}

// Change - одно локальное изменение из журнала, ожидающее отправки.
type Change struct {
	Seq         int64          `json:"seq" yaml:"seq"`
	EntityType  entity.Type    `json:"entity_type" yaml:"entity_type"`
	EntityID    string         `json:"entity_id" yaml:"entity_id"`
	Action      Action         `json:"action" yaml:"action"`
	Payload     entity.Payload `json:"payload,omitempty" yaml:"payload,omitempty"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	RetryCount  int            `json:"retry_count" yaml:"retry_count"`
	Status      Status         `json:"status" yaml:"status"`
	LastError   string         `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastAttempt *time.Time     `json:"last_attempt,omitempty" yaml:"last_attempt,omitempty"`
}

// IdempotencyKey идентифицирует изменение на сервере при повторах.
func (c *Change) IdempotencyKey(clientID string) string {
	return fmt.Sprintf("%s-%d", clientID, c.Seq)
}

// Stats группирует неотправленные изменения для вывода.
type Stats struct {
	Pending  int                 `json:"pending" yaml:"pending"`
	InFlight int                 `json:"in_flight" yaml:"in_flight"`
	Failed   int                 `json:"failed" yaml:"failed"`
	ByType   map[entity.Type]int `json:"by_type" yaml:"by_type"`
	ByAction map[Action]int      `json:"by_action" yaml:"by_action"`
}

// Summarize считает изменения по статусам, а ожидающие по типу и действию.
func Summarize(changes []Change) Stats {
	st := Stats{
		ByType:   make(map[entity.Type]int),
		ByAction: make(map[Action]int),
	}
	for _, c := range changes {
		switch c.Status {
		case StatusPending:
			st.Pending++
			st.ByType[c.EntityType]++
			st.ByAction[c.Action]++
		case StatusInFlight:
			st.InFlight++
		case StatusFailed:
			st.Failed++
		}
	}
	return st
}
