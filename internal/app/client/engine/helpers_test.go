package engine

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"pharmasync/internal/domain/entity"
	"pharmasync/internal/domain/store"
	"pharmasync/internal/infrastructure/storage/sqlite"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestStore(t testing.TB, dir string) *sqlite.Storage {
	t.Helper()
	s, err := sqlite.New(filepath.Join(dir, "local.db"), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeRemote - сервер в памяти, дедуплицирует создание по ключу идемпотентности.
type fakeRemote struct {
	mu   sync.Mutex
	next int
	data map[entity.Type]map[string]entity.Record
	keys map[string]string

	// hook вызывается перед каждым запросом и роняет его, если вернул ошибку.
	hook func(op string, t entity.Type, id string) error
	// lostCreates сохраняет запись, но отвечает ошибкой сервера, как будто
	// ответ потерялся.
	lostCreates int

	creates int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		data: make(map[entity.Type]map[string]entity.Record),
		keys: make(map[string]string),
	}
}

func (f *fakeRemote) call(op string, t entity.Type, id string) error {
	f.mu.Lock()
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		return hook(op, t, id)
	}
	return nil
}

func (f *fakeRemote) setHook(h func(op string, t entity.Type, id string) error) {
	f.mu.Lock()
	f.hook = h
	f.mu.Unlock()
}

func (f *fakeRemote) seed(t entity.Type, id string, p entity.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collection(t)[id] = entity.Record{ID: id, Type: t, Payload: p, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
}

func (f *fakeRemote) collection(t entity.Type) map[string]entity.Record {
	c, ok := f.data[t]
	if !ok {
		c = make(map[string]entity.Record)
		f.data[t] = c
	}
	return c
}

func (f *fakeRemote) records(t entity.Type) []entity.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Record, 0, len(f.data[t]))
	for _, r := range f.data[t] {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeRemote) get(t entity.Type, id string) (entity.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.data[t][id]
	return r.Clone(), ok
}

func (f *fakeRemote) List(_ context.Context, t entity.Type) ([]entity.Record, error) {
	if err := f.call("list", t, ""); err != nil {
		return nil, err
	}
	return f.records(t), nil
}

func (f *fakeRemote) Create(_ context.Context, t entity.Type, payload entity.Payload, key string) (*entity.Record, error) {
	if err := f.call("create", t, ""); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if id, ok := f.keys[key]; ok {
		r := f.data[t][id].Clone()
		return &r, nil
	}

	f.next++
	f.creates++
	p := payload.Clone()
	delete(p, "id")
	delete(p, "is_temporary_id")
	now := time.Now().UTC()
	r := entity.Record{ID: fmt.Sprintf("srv-%d", f.next), Type: t, Payload: p, CreatedAt: now, UpdatedAt: now}
	f.collection(t)[r.ID] = r
	if key != "" {
		f.keys[key] = r.ID
	}

	if f.lostCreates > 0 {
		f.lostCreates--
		return nil, &StatusError{StatusCode: http.StatusBadGateway}
	}
	out := r.Clone()
	return &out, nil
}

func (f *fakeRemote) Update(_ context.Context, t entity.Type, id string, payload entity.Payload) (*entity.Record, error) {
	if err := f.call("update", t, id); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.data[t][id]
	if !ok {
		return nil, &StatusError{StatusCode: http.StatusNotFound}
	}
	p := payload.Clone()
	delete(p, "id")
	r.Payload = p
	r.UpdatedAt = time.Now().UTC()
	f.data[t][id] = r
	out := r.Clone()
	return &out, nil
}

func (f *fakeRemote) Delete(_ context.Context, t entity.Type, id string) error {
	if err := f.call("delete", t, id); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.data[t][id]; !ok {
		return &StatusError{StatusCode: http.StatusNotFound}
	}
	delete(f.data[t], id)
	return nil
}

type harness struct {
	store    *sqlite.Storage
	remote   *fakeRemote
	monitor  *ManualMonitor
	bus      *Bus
	recorder *Recorder
	orch     *Orchestrator
}

func newHarness(t testing.TB, dir string, cfg Config) *harness {
	t.Helper()
	log := newTestLogger()
	h := &harness{
		store:   newTestStore(t, dir),
		remote:  newFakeRemote(),
		monitor: NewManualMonitor(true),
		bus:     NewBus(log),
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "test-client"
	}
	h.recorder = NewRecorder(h.store, log)
	h.orch = NewOrchestrator(h.store, h.remote, h.monitor, h.bus, NewReconciler(), cfg, log)
	return h
}

// interleavingStore выполняет отложенную запись прямо перед следующей транзакцией
// или BulkReplace, как будто другой писатель успел раньше.
type interleavingStore struct {
	store.Store

	mu      sync.Mutex
	pending func()
}

func (s *interleavingStore) arm(fn func()) {
	s.mu.Lock()
	s.pending = fn
	s.mu.Unlock()
}

func (s *interleavingStore) interleave() {
	s.mu.Lock()
	fn := s.pending
	s.pending = nil
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *interleavingStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.interleave()
	return s.Store.InTx(ctx, fn)
}

func (s *interleavingStore) BulkReplace(ctx context.Context, t entity.Type, records []entity.Record, preserve map[string]bool) (int, error) {
	s.interleave()
	return s.Store.BulkReplace(ctx, t, records, preserve)
}
