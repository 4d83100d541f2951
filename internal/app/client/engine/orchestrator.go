package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/slog"

	"pharmasync/internal/domain/change"
	"pharmasync/internal/domain/entity"
	"pharmasync/internal/domain/store"
)

const (
	metaLastSync       = "lastSyncTime"
	metaLastSyncPrefix = "lastSync_"

	// sessionSyncActive хранит время последней активности идущей сессии,
	// видимое другим процессам с тем же хранилищем.
	sessionSyncActive = "sync_active"
	// SyncLease - сколько отметка сессии считается живой без обновления.
	SyncLease = 2 * time.Minute

	DefaultInterval       = 15 * time.Minute
	DefaultMaxRetries     = 5
	DefaultRequestTimeout = 30 * time.Second
)

// Config - настройки оркестратора.
type Config struct {
	Interval       time.Duration `json:"interval"`
	MaxRetries     int           `json:"max_retries"`
	RequestTimeout time.Duration `json:"request_timeout"`
	// ClientID - префикс ключей идемпотентности, по нему сервер
	// дедуплицирует повторы от этого клиента.
	ClientID string `json:"client_id"`
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Reason - что запустило сессию.
type Reason string

const (
	ReasonManual    Reason = "manual"
	ReasonPeriodic  Reason = "periodic"
	ReasonReconnect Reason = "reconnect"
	ReasonStartup   Reason = "startup"
)

// Параметры TriggerSync.
type Options struct {
	Reason   Reason
	PushOnly bool
}

// ChangeError описывает одно несинхронизированное изменение.
type ChangeError struct {
	Seq        int64         `json:"seq" yaml:"seq"`
	EntityType entity.Type   `json:"entity_type" yaml:"entity_type"`
	EntityID   string        `json:"entity_id" yaml:"entity_id"`
	Action     change.Action `json:"action" yaml:"action"`
	Error      string        `json:"error" yaml:"error"`
	Class      string        `json:"class" yaml:"class"`
	Retry      int           `json:"retry" yaml:"retry"`
	Timestamp  time.Time     `json:"timestamp" yaml:"timestamp"`
}

// Result - итог одной сессии синхронизации.
type Result struct {
	Results   `yaml:",inline"`
	Reason    Reason        `json:"reason" yaml:"reason"`
	Full      bool          `json:"full" yaml:"full"`
	Errors    []ChangeError `json:"errors" yaml:"errors"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	EndTime   time.Time     `json:"end_time" yaml:"end_time"`
}

// Фаза снимка сессии в памяти.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhasePushing     Phase = "pushing"
	PhaseReconciling Phase = "reconciling"
	PhasePulling     Phase = "pulling"
)

// Session описывает идущую синхронизацию. Не сохраняется на диск.
type Session struct {
	Phase        Phase       `json:"phase" yaml:"phase"`
	Current      int         `json:"current" yaml:"current"`
	Total        int         `json:"total" yaml:"total"`
	CurrentStore entity.Type `json:"current_store,omitempty" yaml:"current_store,omitempty"`
}

type outcome int

const (
	outcomePushed outcome = iota
	outcomeFailed
	outcomeRetrying
	outcomeHeld
)

// Orchestrator проводит push, reconcile и pull одной сессией.
type Orchestrator struct {
	store      store.Store
	remote     Remote
	monitor    Monitor
	bus        *Bus
	reconciler *Reconciler
	cfg        Config
	log        *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time

	m *machine

	sessMu  sync.RWMutex
	session Session
}

func NewOrchestrator(st store.Store, remote Remote, monitor Monitor, bus *Bus, rec *Reconciler, cfg Config, log *slog.Logger) *Orchestrator {
	cfg.setDefaults()
	return &Orchestrator{
		store:      st,
		remote:     remote,
		monitor:    monitor,
		bus:        bus,
		reconciler: rec,
		cfg:        cfg,
		log:        log.With("component", "sync_orchestrator"),
		tracer:     otel.Tracer("pharmasync/engine"),
		now:        time.Now,
		m:          newMachine(),
		session:    Session{Phase: PhaseIdle},
	}
}

func (o *Orchestrator) Config() Config {
	return o.cfg
}

func (o *Orchestrator) Reconciler() *Reconciler {
	return o.reconciler
}

func (o *Orchestrator) State() State {
	return o.m.current()
}

func (o *Orchestrator) IsSyncing() bool {
	return o.m.current() != StateIdle
}

func (o *Orchestrator) IsOnline() bool {
	return o.monitor.Online()
}

func (o *Orchestrator) Session() Session {
	o.sessMu.RLock()
	defer o.sessMu.RUnlock()
	return o.session
}

func (o *Orchestrator) setSession(s Session) {
	o.sessMu.Lock()
	o.session = s
	o.sessMu.Unlock()
}

// touch обновляет отметку активной сессии в хранилище.
func (o *Orchestrator) touch(ctx context.Context) {
	if err := o.store.SetSession(ctx, sessionSyncActive, o.now().UTC().Format(time.RFC3339Nano)); err != nil {
		o.log.Warn("failed to mark sync session", "error", err)
	}
}

func (o *Orchestrator) release(ctx context.Context) {
	if err := o.store.SetSession(context.WithoutCancel(ctx), sessionSyncActive, ""); err != nil {
		o.log.Warn("failed to clear sync session", "error", err)
	}
}

// SessionActive сообщает, идет ли сессия в этом или другом процессе.
// Отметка, не обновлявшаяся дольше SyncLease, считается брошенной.
func (o *Orchestrator) SessionActive(ctx context.Context) (bool, error) {
	if o.IsSyncing() {
		return true, nil
	}
	raw, ok, err := o.store.GetSession(ctx, sessionSyncActive)
	if err != nil {
		return false, storageErr(err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return false, nil
	}
	return o.now().Sub(at) < SyncLease, nil
}

func (o *Orchestrator) checkIdle(ctx context.Context) error {
	busy, err := o.SessionActive(ctx)
	if err != nil {
		return err
	}
	if busy {
		return ErrSyncInProgress
	}
	return nil
}

func (o *Orchestrator) publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = o.now().UTC()
	}
	o.bus.Publish(e)
}

// TriggerSync запускает сессию push, reconcile и pull. Если сессия
// уже идет, возвращает ErrSyncInProgress без побочных эффектов.
func (o *Orchestrator) TriggerSync(ctx context.Context, opts Options) (*Result, error) {
	if opts.Reason == "" {
		opts.Reason = ReasonManual
	}
	if !o.monitor.Online() {
		return nil, ErrOffline
	}
	if err := o.checkIdle(ctx); err != nil {
		return nil, err
	}
	if err := o.m.begin(StatePushing); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "sync.session",
		trace.WithAttributes(attribute.String("sync.reason", string(opts.Reason))))
	defer span.End()
	o.touch(ctx)

	res := &Result{Reason: opts.Reason, StartTime: o.now().UTC(), Errors: []ChangeError{}}
	o.log.Info("sync started", "reason", opts.Reason)
	o.publish(Event{Type: EventSyncStart, Timestamp: res.StartTime})

	if err := o.push(ctx, res); err != nil {
		return o.fail(ctx, span, res, err)
	}

	if err := o.m.transition(StateReconciling); err != nil {
		return o.fail(ctx, span, res, err)
	}
	if err := o.reconcile(ctx); err != nil {
		return o.fail(ctx, span, res, err)
	}

	if !opts.PushOnly {
		if err := o.m.transition(StatePulling); err != nil {
			return o.fail(ctx, span, res, err)
		}
		if err := o.pull(ctx, res, preserveUnresolved); err != nil {
			return o.fail(ctx, span, res, err)
		}
	}

	return o.complete(ctx, span, res, !opts.PushOnly)
}

// TriggerFullResync пропускает push и заменяет все коллекции серверными,
// оставляя только записи, создание которых еще не синхронизировано.
func (o *Orchestrator) TriggerFullResync(ctx context.Context) (*Result, error) {
	if !o.monitor.Online() {
		return nil, ErrOffline
	}
	if err := o.checkIdle(ctx); err != nil {
		return nil, err
	}
	if err := o.m.begin(StatePulling); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "sync.session",
		trace.WithAttributes(attribute.Bool("sync.full", true)))
	defer span.End()
	o.touch(ctx)

	res := &Result{Reason: ReasonManual, Full: true, StartTime: o.now().UTC(), Errors: []ChangeError{}}
	o.log.Info("full resync started")
	o.publish(Event{Type: EventSyncStart, Timestamp: res.StartTime})

	if err := o.pull(ctx, res, preserveUnsyncedCreates); err != nil {
		return o.fail(ctx, span, res, err)
	}
	return o.complete(ctx, span, res, true)
}

// complete завершает сессию. Время последней синхронизации обновляется,
// только если коллекции загружались.
func (o *Orchestrator) complete(ctx context.Context, span trace.Span, res *Result, pulled bool) (*Result, error) {
	res.EndTime = o.now().UTC()
	res.Duration = res.EndTime.Sub(res.StartTime)

	if pulled {
		if err := o.store.SetMeta(ctx, metaLastSync, res.EndTime.Format(time.RFC3339Nano)); err != nil {
			return o.fail(ctx, span, res, storageErr(err))
		}
	}
	o.release(ctx)
	if err := o.m.transition(StateIdle); err != nil {
		return o.fail(ctx, span, res, err)
	}
	o.setSession(Session{Phase: PhaseIdle})

	span.SetAttributes(
		attribute.Int("sync.pushed", res.Pushed),
		attribute.Int("sync.failed", res.Failed),
		attribute.Int("sync.pulled", res.Pulled),
	)
	span.SetStatus(codes.Ok, "")

	o.log.Info("sync completed",
		"pushed", res.Pushed, "failed", res.Failed, "retrying", res.Retrying,
		"held_back", res.HeldBack, "pulled", res.Pulled, "duration", res.Duration)

	results := res.Results
	o.publish(Event{Type: EventSyncComplete, Results: &results, Timestamp: res.EndTime})
	return res, nil
}

// fail сообщает об ошибке сессии и возвращает автомат в idle.
func (o *Orchestrator) fail(ctx context.Context, span trace.Span, res *Result, err error) (*Result, error) {
	res.EndTime = o.now().UTC()
	res.Duration = res.EndTime.Sub(res.StartTime)

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	o.log.Error("sync failed", "state", o.m.current(), "error", err)

	if terr := o.m.transition(StateError); terr != nil {
		o.log.Error("failed to enter error state", "error", terr)
	}
	results := res.Results
	o.publish(Event{Type: EventSyncError, Error: err.Error(), Results: &results, Timestamp: res.EndTime})

	o.release(ctx)
	if terr := o.m.transition(StateIdle); terr != nil {
		o.log.Error("failed to return to idle", "error", terr)
	}
	o.setSession(Session{Phase: PhaseIdle})
	return res, err
}

func (o *Orchestrator) push(ctx context.Context, res *Result) error {
	ctx, span := o.tracer.Start(ctx, "sync.push")
	defer span.End()

	if n, err := o.store.ResetInFlight(ctx); err != nil {
		return storageErr(err)
	} else if n > 0 {
		o.log.Warn("recovered interrupted changes", "count", n)
	}

	pending, err := o.store.Changes(ctx, change.StatusPending)
	if err != nil {
		return storageErr(err)
	}

	total := len(pending)
	o.setSession(Session{Phase: PhasePushing, Total: total})
	o.publish(Event{Type: EventPushStart, Total: total})

	for i := range pending {
		if !o.monitor.Online() {
			left := total - i
			o.log.Warn("went offline during push, leaving changes pending", "remaining", left)
			res.HeldBack += left
			break
		}

		o.touch(ctx)
		out, err := o.pushOne(ctx, &pending[i], res)
		if err != nil {
			span.RecordError(err)
			return err
		}
		switch out {
		case outcomePushed:
			res.Pushed++
		case outcomeFailed:
			res.Failed++
		case outcomeRetrying:
			res.Retrying++
		case outcomeHeld:
			res.HeldBack++
		}

		o.setSession(Session{Phase: PhasePushing, Current: i + 1, Total: total})
		o.publish(Event{Type: EventPushProgress, Current: i + 1, Total: total})
	}

	span.SetAttributes(attribute.Int("sync.pushed", res.Pushed))
	results := res.Results
	o.publish(Event{Type: EventPushComplete, Current: total, Total: total, Results: &results})
	return nil
}

// pushOne отправляет одно изменение. Ошибкой возвращаются только сбои
// локального хранилища, ошибки сервера записываются в изменение.
func (o *Orchestrator) pushOne(ctx context.Context, c *change.Change, res *Result) (outcome, error) {
	if gaps := o.gaps(c); len(gaps) > 0 {
		o.log.Debug("holding back change", "seq", c.Seq, "type", c.EntityType,
			"unresolved", gaps, "reason", ErrReconciliationGap)
		return outcomeHeld, nil
	}

	c.EntityID = o.reconciler.Resolve(c.EntityID)
	if p, changed := o.reconciler.RewritePayload(c.Payload); changed {
		c.Payload = p
	}
	attempt := o.now().UTC()
	c.Status = change.StatusInFlight
	c.LastAttempt = &attempt
	if err := o.store.UpdateChange(ctx, c); err != nil {
		return 0, storageErr(err)
	}

	// отправленный запрос доводим до конца, даже если вызывающий сдался
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RequestTimeout)
	defer cancel()

	var (
		srv *entity.Record
		err error
	)
	switch c.Action {
	case change.ActionCreate:
		srv, err = o.remote.Create(rctx, c.EntityType, c.Payload, c.IdempotencyKey(o.cfg.ClientID))
	case change.ActionUpdate:
		srv, err = o.remote.Update(rctx, c.EntityType, c.EntityID, c.Payload)
	case change.ActionDelete:
		err = o.remote.Delete(rctx, c.EntityType, c.EntityID)
		if IsNotFound(err) {
			err = nil
		}
	}

	if err != nil {
		return o.recordFailure(ctx, c, err, res)
	}
	if err := o.applySuccess(ctx, c, srv); err != nil {
		return 0, storageErr(err)
	}
	return outcomePushed, nil
}

// gaps возвращает временные id, от которых зависит c и которые еще не сопоставлены.
func (o *Orchestrator) gaps(c *change.Change) []string {
	var self string
	if c.Action == change.ActionCreate {
		self = c.EntityID
	} else if entity.IsTemporaryID(c.EntityID) && !o.reconciler.Known(c.EntityID) {
		return []string{c.EntityID}
	}
	return o.reconciler.Unresolved(c.Payload, self)
}

func (o *Orchestrator) recordFailure(ctx context.Context, c *change.Change, err error, res *Result) (outcome, error) {
	class := Classify(err)
	c.LastError = err.Error()

	out := outcomeFailed
	if class == ClassTransient {
		c.RetryCount++
		if c.RetryCount < o.cfg.MaxRetries {
			c.Status = change.StatusPending
			out = outcomeRetrying
		} else {
			c.Status = change.StatusFailed
		}
	} else {
		c.Status = change.StatusFailed
	}

	if uerr := o.store.UpdateChange(ctx, c); uerr != nil {
		return 0, storageErr(uerr)
	}

	o.log.Warn("change not synced",
		"seq", c.Seq, "type", c.EntityType, "action", c.Action, "id", c.EntityID,
		"class", class, "retry", c.RetryCount, "status", c.Status, "error", err)

	res.Errors = append(res.Errors, ChangeError{
		Seq:        c.Seq,
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		Action:     c.Action,
		Error:      err.Error(),
		Class:      class.String(),
		Retry:      c.RetryCount,
		Timestamp:  o.now().UTC(),
	})
	return out, nil
}

// applySuccess сохраняет ответ сервера локально и удаляет изменение.
func (o *Orchestrator) applySuccess(ctx context.Context, c *change.Change, srv *entity.Record) error {
	if c.Action == change.ActionCreate && srv != nil && srv.ID != c.EntityID {
		o.reconciler.RegisterMapping(c.EntityID, srv.ID)
	}

	return o.store.InTx(ctx, func(tx store.Tx) error {
		switch c.Action {
		case change.ActionCreate:
			if err := o.settleCreate(ctx, tx, c, srv); err != nil {
				return err
			}
		case change.ActionUpdate:
			if err := o.settleUpdate(ctx, tx, c, srv); err != nil {
				return err
			}
		case change.ActionDelete:
			if err := tx.Remove(ctx, c.EntityType, c.EntityID); err != nil {
				return err
			}
		}
		return tx.DeleteChange(ctx, c.Seq)
	})
}

func (o *Orchestrator) settleCreate(ctx context.Context, tx store.Tx, c *change.Change, srv *entity.Record) error {
	if srv == nil {
		return nil
	}
	tempID := c.EntityID

	local, err := tx.Get(ctx, c.EntityType, tempID)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return err
	}

	next := srv.Clone()
	next.Temporary = false
	if local != nil {
		next.CreatedAt = local.CreatedAt
		next.DeletedAt = local.DeletedAt
		busy, err := o.hasOtherUnresolved(ctx, tx, c)
		if err != nil {
			return err
		}
		if busy {
			// более поздняя локальная правка главнее, пока ее не отправили
			next.Payload = local.Payload
		}
	}

	if tempID == next.ID {
		if err := tx.Put(ctx, c.EntityType, &next); err != nil {
			return err
		}
	} else if err := tx.ReplaceID(ctx, c.EntityType, tempID, &next); err != nil {
		return err
	}

	if tempID != next.ID {
		if _, err := rewriteQueued(ctx, tx, map[string]string{tempID: next.ID}); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) settleUpdate(ctx context.Context, tx store.Tx, c *change.Change, srv *entity.Record) error {
	if srv == nil {
		return nil
	}
	busy, err := o.hasOtherUnresolved(ctx, tx, c)
	if err != nil || busy {
		return err
	}

	next := srv.Clone()
	next.Temporary = false
	if local, err := tx.Get(ctx, c.EntityType, c.EntityID); err == nil {
		next.CreatedAt = local.CreatedAt
	}
	return tx.Put(ctx, c.EntityType, &next)
}

func (o *Orchestrator) hasOtherUnresolved(ctx context.Context, tx store.Tx, c *change.Change) (bool, error) {
	changes, err := tx.Changes(ctx, change.Unresolved...)
	if err != nil {
		return false, err
	}
	for _, other := range changes {
		if other.Seq != c.Seq && other.EntityType == c.EntityType && other.EntityID == c.EntityID {
			return true, nil
		}
	}
	return false, nil
}

// rewriteQueued заменяет сопоставленные id во всех изменениях, не принятых
// сервером, и возвращает число переписанных.
func rewriteQueued(ctx context.Context, tx store.Tx, ids map[string]string) (int, error) {
	changes, err := tx.Changes(ctx, change.Unresolved...)
	if err != nil {
		return 0, err
	}

	n := 0
	for i := range changes {
		c := &changes[i]
		dirty := false
		if srv, ok := ids[c.EntityID]; ok {
			c.EntityID = srv
			dirty = true
		}
		if p, changed := rewritePayload(c.Payload, ids); changed {
			c.Payload = p
			dirty = true
		}
		if !dirty {
			continue
		}
		if err := tx.UpdateChange(ctx, c); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// reconcile переписывает ссылки на сопоставленные id в изменениях, оставшихся после push.
func (o *Orchestrator) reconcile(ctx context.Context) error {
	ids := o.reconciler.Mapped()
	o.setSession(Session{Phase: PhaseReconciling})
	if len(ids) == 0 {
		return nil
	}

	var n int
	err := o.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = rewriteQueued(ctx, tx, ids)
		return err
	})
	if err != nil {
		return storageErr(err)
	}
	if n > 0 {
		o.log.Info("rewrote references in queued changes", "count", n)
	}
	return nil
}

// preserveFunc вызывается внутри транзакции замены коллекции, поэтому
// видит все закоммиченные до нее записи.
type preserveFunc func(ctx context.Context, tx store.Tx, t entity.Type) (map[string]bool, error)

// preserveUnresolved сохраняет записи с несинхронизированными изменениями
// и все временные записи.
func preserveUnresolved(ctx context.Context, tx store.Tx, t entity.Type) (map[string]bool, error) {
	ids, err := tx.UnresolvedIDs(ctx, t)
	if err != nil {
		return nil, err
	}
	records, err := tx.GetAll(ctx, t, entity.Filter{ShowDeleted: true})
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.Temporary {
			ids[r.ID] = true
		}
	}
	return ids, nil
}

// preserveUnsyncedCreates сохраняет только записи, создание которых не синхронизировано.
func preserveUnsyncedCreates(ctx context.Context, tx store.Tx, t entity.Type) (map[string]bool, error) {
	changes, err := tx.Changes(ctx, change.Unresolved...)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, c := range changes {
		if c.EntityType == t && c.Action == change.ActionCreate {
			ids[c.EntityID] = true
		}
	}
	return ids, nil
}

func (o *Orchestrator) pull(ctx context.Context, res *Result, preserve preserveFunc) error {
	ctx, span := o.tracer.Start(ctx, "sync.pull")
	defer span.End()

	types := entity.All()
	total := len(types)
	o.publish(Event{Type: EventPullStart, Total: total})

	for i, t := range types {
		o.setSession(Session{Phase: PhasePulling, Current: i, Total: total, CurrentStore: t})
		o.touch(ctx)

		rctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
		records, err := o.remote.List(rctx, t)
		cancel()
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("pull %s: %w", t, err)
		}

		var (
			n    int
			keep map[string]bool
		)
		err = o.store.InTx(ctx, func(tx store.Tx) error {
			var err error
			if keep, err = preserve(ctx, tx, t); err != nil {
				return err
			}
			if n, err = tx.BulkReplace(ctx, t, records, keep); err != nil {
				return err
			}
			return tx.SetMeta(ctx, metaLastSyncPrefix+string(t), o.now().UTC().Format(time.RFC3339Nano))
		})
		if err != nil {
			return storageErr(err)
		}
		res.Pulled += n

		o.log.Debug("pulled collection", "store", t, "records", n, "preserved", len(keep))
		o.setSession(Session{Phase: PhasePulling, Current: i + 1, Total: total, CurrentStore: t})
		o.publish(Event{Type: EventPullProgress, Store: t, Current: i + 1, Total: total})
	}

	span.SetAttributes(attribute.Int("sync.pulled", res.Pulled))
	results := res.Results
	o.publish(Event{Type: EventPullComplete, Current: total, Total: total, Results: &results})
	return nil
}
