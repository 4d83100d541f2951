package engine

import (
	"context"
	"errors"
	"time"

	"golang.org/x/exp/slog"
)

// Syncer выполняет одну сессию синхронизации.
type Syncer interface {
	TriggerSync(ctx context.Context, opts Options) (*Result, error)
}

// Scheduler запускает сессии при старте, периодически при наличии связи
// и при каждом переходе из офлайна в онлайн.
type Scheduler struct {
	syncer   Syncer
	monitor  Monitor
	interval time.Duration
	log      *slog.Logger
}

func NewScheduler(s Syncer, m Monitor, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		syncer:   s,
		monitor:  m,
		interval: interval,
		log:      log.With("component", "sync_scheduler"),
	}
}

// Run блокируется до завершения ctx.
func (s *Scheduler) Run(ctx context.Context) {
	wake := make(chan bool, 1)
	unsubscribe := s.monitor.Subscribe(func(online bool) {
		// оставляем только последний переход
		select {
		case <-wake:
		default:
		}
		select {
		case wake <- online:
		default:
		}
	})
	defer unsubscribe()

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	start := func() {
		if ticker == nil {
			ticker = time.NewTicker(s.interval)
			tick = ticker.C
		}
	}
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stop()

	if s.monitor.Online() {
		start()
		s.trigger(ctx, ReasonStartup)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-wake:
			if !online {
				s.log.Info("offline, pausing periodic sync")
				stop()
				continue
			}
			s.log.Info("back online")
			start()
			s.trigger(ctx, ReasonReconnect)
		case <-tick:
			s.trigger(ctx, ReasonPeriodic)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, reason Reason) {
	_, err := s.syncer.TriggerSync(ctx, Options{Reason: reason})
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress), errors.Is(err, ErrOffline):
		s.log.Debug("sync skipped", "reason", reason, "error", err)
	default:
		s.log.Warn("scheduled sync failed", "reason", reason, "error", err)
	}
}
