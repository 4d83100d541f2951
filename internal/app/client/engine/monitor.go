package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
)

// Monitor отдает сигнал наличия связи. Подписчики узнают только
// о переключениях.
type Monitor interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

type watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(bool)
}

func (w *watchers) add(fn func(bool)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fns == nil {
		w.fns = make(map[int]func(bool))
	}
	w.next++
	id := w.next
	w.fns[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

func (w *watchers) notify(online bool) {
	w.mu.Lock()
	fns := make([]func(bool), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// ManualMonitor управляется явными вызовами Set.
type ManualMonitor struct {
	online atomic.Bool
	watchers
}

func NewManualMonitor(online bool) *ManualMonitor {
	m := &ManualMonitor{}
	m.online.Store(online)
	return m
}

func (m *ManualMonitor) Online() bool {
	return m.online.Load()
}

func (m *ManualMonitor) Subscribe(fn func(bool)) func() {
	return m.add(fn)
}

// Set обновляет сигнал и уведомляет подписчиков, если он переключился.
func (m *ManualMonitor) Set(online bool) {
	if m.online.Swap(online) != online {
		m.notify(online)
	}
}

// Pinger проверяет доступность сервера.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProbeMonitor определяет наличие связи по периодическим проверкам health.
type ProbeMonitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	online   atomic.Bool
	log      *slog.Logger
	watchers
}

func NewProbeMonitor(p Pinger, interval, timeout time.Duration, log *slog.Logger) *ProbeMonitor {
	return &ProbeMonitor{
		pinger:   p,
		interval: interval,
		timeout:  timeout,
		log:      log.With("component", "network_monitor"),
	}
}

func (m *ProbeMonitor) Online() bool {
	return m.online.Load()
}

func (m *ProbeMonitor) Subscribe(fn func(bool)) func() {
	return m.add(fn)
}

// Probe один раз пингует сервер и запоминает результат.
func (m *ProbeMonitor) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(pctx)
	online := err == nil
	if m.online.Swap(online) != online {
		if online {
			m.log.Info("server reachable")
		} else {
			m.log.Warn("server unreachable", "error", err)
		}
		m.notify(online)
	}
	return online
}

// Run проверяет сразу и затем каждый интервал, пока ctx не завершится.
func (m *ProbeMonitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
