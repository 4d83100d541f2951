package client

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"pharmasync/internal/app/client/config"
	"pharmasync/internal/app/client/engine"
	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
	"pharmasync/internal/infrastructure/storage/sqlite"
)

const sessionClientID = "client_id"

// Options настраивают сборку App.
type Options struct {
	// Offline фиксирует монитор в офлайне. На сервер ничего не отправляется.
	Offline bool
	// Remote подменяет HTTP клиент, в основном для тестов.
	Remote engine.Remote
}

// App связывает локальное хранилище, движок синхронизации и удаленный API.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	store      *sqlite.Storage
	remote     engine.Remote
	monitor    engine.Monitor
	probe      *engine.ProbeMonitor
	bus        *engine.Bus
	recorder   *engine.Recorder
	reconciler *engine.Reconciler
	orch       *engine.Orchestrator
	validator  *entity.Validator
	clientID   string
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := sqlite.New(cfg.DBPath(), log)
	if err != nil {
		return nil, err
	}

	clientID, err := loadClientID(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	remote := opts.Remote
	if remote == nil {
		httpCl, err := NewHTTPClient(cfg.ServerAddress, cfg.APIToken, cfg.RequestTimeout, log)
		if err != nil {
			st.Close()
			return nil, err
		}
		remote = httpCl
	}

	a := &App{
		cfg:        cfg,
		log:        log.With("component", "app"),
		store:      st,
		remote:     remote,
		bus:        engine.NewBus(log),
		recorder:   engine.NewRecorder(st, log),
		reconciler: engine.NewReconciler(),
		validator:  entity.NewValidator(),
		clientID:   clientID,
	}

	pinger, canPing := remote.(engine.Pinger)
	switch {
	case opts.Offline:
		a.monitor = engine.NewManualMonitor(false)
	case canPing:
		a.probe = engine.NewProbeMonitor(pinger, cfg.ProbeInterval, cfg.RequestTimeout, log)
		a.monitor = a.probe
	default:
		a.monitor = engine.NewManualMonitor(true)
	}

	a.orch = engine.NewOrchestrator(st, remote, a.monitor, a.bus, a.reconciler, engine.Config{
		Interval:       cfg.SyncInterval,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout,
		ClientID:       clientID,
	}, log)

	// изменения в полете у живой сессии другого процесса не трогаем
	busy, err := a.orch.SessionActive(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	if !busy {
		if n, err := st.ResetInFlight(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("recover interrupted changes: %w", err)
		} else if n > 0 {
			a.log.Warn("changes left in flight by a previous run were requeued", "count", n)
		}
	}

	return a, nil
}

func loadClientID(ctx context.Context, st *sqlite.Storage) (string, error) {
	id, ok, err := st.GetSession(ctx, sessionClientID)
	if err != nil {
		return "", fmt.Errorf("read client id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := st.SetSession(ctx, sessionClientID, id); err != nil {
		return "", fmt.Errorf("save client id: %w", err)
	}
	return id, nil
}

func (a *App) ClientID() string {
	return a.clientID
}

func (a *App) Events() *engine.Bus {
	return a.bus
}

func (a *App) Orchestrator() *engine.Orchestrator {
	return a.orch
}

// Connect один раз проверяет сервер и сообщает, доступен ли он.
func (a *App) Connect(ctx context.Context) bool {
	if a.probe != nil {
		return a.probe.Probe(ctx)
	}
	return a.monitor.Online()
}

// Run проверяет связь и синхронизирует по расписанию до завершения ctx.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.probe != nil {
		g.Go(func() error {
			a.probe.Run(ctx)
			return nil
		})
	}

	scheduler := engine.NewScheduler(a.orch, a.monitor, a.cfg.SyncInterval, a.log)
	g.Go(func() error {
		scheduler.Run(ctx)
		return nil
	})

	a.log.Info("client started", "server", a.cfg.ServerAddress, "client_id", a.clientID)
	err := g.Wait()
	a.log.Info("client stopped")
	return err
}

func (a *App) Close() error {
	return a.store.Close()
}

// Sync запускает одну сессию push, reconcile и pull.
func (a *App) Sync(ctx context.Context, opts engine.Options) (*engine.Result, error) {
	return a.orch.TriggerSync(ctx, opts)
}

// Preload заменяет локальные коллекции серверными.
func (a *App) Preload(ctx context.Context) (*engine.Result, error) {
	return a.orch.TriggerFullResync(ctx)
}

func (a *App) Status(ctx context.Context) (*engine.Status, error) {
	return a.orch.Status(ctx)
}

func (a *App) Stats(ctx context.Context) (change.Stats, error) {
	return a.orch.Stats(ctx)
}

// Changes возвращает изменения, еще не принятые сервером.
func (a *App) Changes(ctx context.Context) ([]change.Change, error) {
	return a.store.Changes(ctx, change.Unresolved...)
}

func (a *App) RetryFailed(ctx context.Context) (int, error) {
	return a.orch.RetryFailed(ctx)
}

func (a *App) Discard(ctx context.Context, seq int64) error {
	return a.orch.Discard(ctx, seq)
}
