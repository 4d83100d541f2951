package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type recordingSyncer struct {
	mu      sync.Mutex
	reasons []Reason
	calls   chan Reason
}

func newRecordingSyncer() *recordingSyncer {
	return &recordingSyncer{calls: make(chan Reason, 16)}
}

func (s *recordingSyncer) TriggerSync(_ context.Context, opts Options) (*Result, error) {
	s.mu.Lock()
	s.reasons = append(s.reasons, opts.Reason)
	s.mu.Unlock()
	s.calls <- opts.Reason
	return &Result{Reason: opts.Reason}, nil
}

func waitReason(t *testing.T, calls <-chan Reason) Reason {
	t.Helper()
	select {
	case r := <-calls:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync trigger")
		return ""
	}
}

func TestScheduler_TriggersOnStartupTickAndReconnect(t *testing.T) {
	defer goleak.VerifyNone(t)

	syncer := newRecordingSyncer()
	monitor := NewManualMonitor(true)
	s := NewScheduler(syncer, monitor, 20*time.Millisecond, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	assert.Equal(t, ReasonStartup, waitReason(t, syncer.calls))
	assert.Equal(t, ReasonPeriodic, waitReason(t, syncer.calls))

	monitor.Set(false)
	// сбрасываем тики, пришедшие одновременно с уходом в офлайн
	deadline := time.After(100 * time.Millisecond)
drain:
	for {
		select {
		case <-syncer.calls:
		case <-deadline:
			break drain
		}
	}

	monitor.Set(true)
	assert.Equal(t, ReasonReconnect, waitReason(t, syncer.calls))

	cancel()
	<-done
}

func TestScheduler_StaysQuietWhileOffline(t *testing.T) {
	defer goleak.VerifyNone(t)

	syncer := newRecordingSyncer()
	s := NewScheduler(syncer, NewManualMonitor(false), 10*time.Millisecond, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	assert.Empty(t, syncer.reasons)
}
