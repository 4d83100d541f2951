package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"pharmasync/internal/domain/entity"
)

type EventType string

const (
	EventSyncStart    EventType = "sync_start"
	EventPushStart    EventType = "push_start"
	EventPushProgress EventType = "push_progress"
	EventPushComplete EventType = "push_complete"
	EventPullStart    EventType = "pull_start"
	EventPullProgress EventType = "pull_progress"
	EventPullComplete EventType = "pull_complete"
	EventSyncComplete EventType = "sync_complete"
	EventSyncError    EventType = "sync_error"
)

// Results собирает итоги сессии синхронизации.
type Results struct {
	Pushed   int `json:"pushed" yaml:"pushed"`
	Failed   int `json:"failed" yaml:"failed"`
	Retrying int `json:"retrying" yaml:"retrying"`
	HeldBack int `json:"held_back" yaml:"held_back"`
	Pulled   int `json:"pulled" yaml:"pulled"`
}

// Event публикуется в шину во время сессии.
type Event struct {
	Type      EventType   `json:"type"`
	Current   int         `json:"current,omitempty"`
	Total     int         `json:"total,omitempty"`
	Store     entity.Type `json:"store,omitempty"`
	Results   *Results    `json:"results,omitempty"`
	Timestamp time.Time   `json:"timestamp,omitzero"`
	Error     string      `json:"error,omitempty"`
}

type Listener func(Event)

type subscriber struct {
	id uint64
	fn Listener
}

// Bus синхронно рассылает события подписчикам в порядке подписки.
// Прошлые события не повторяются.
type Bus struct {
	mu   sync.Mutex
	next uint64
	subs []subscriber
	log  *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{log: log.With("component", "event_bus")}
}

// Subscription - токен, который возвращает Subscribe.
type Subscription struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// Subscribe регистрирует fn до отмены подписки.
func (b *Bus) Subscribe(fn Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.subs = append(b.subs, subscriber{id: b.next, fn: fn})
	return &Subscription{bus: b, id: b.next}
}

// SubscribeContext - Subscribe с автоматической отменой по завершении ctx.
func (b *Bus) SubscribeContext(ctx context.Context, fn Listener) *Subscription {
	sub := b.Subscribe(fn)
	context.AfterFunc(ctx, sub.Unsubscribe)
	return sub
}

// Unsubscribe удаляет слушателя. Повторный вызов безопасен.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.id)
	})
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len возвращает число активных подписчиков.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish доставляет e подписчикам, зарегистрированным на момент вызова.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, e)
	}
}

func (b *Bus) deliver(sub subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("listener panicked", "event", e.Type, "panic", r)
		}
	}()
	sub.fn(e)
}
