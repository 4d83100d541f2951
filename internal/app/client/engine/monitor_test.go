package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type fakePinger struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls.Add(1)
	if p.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestManualMonitor_NotifiesOnTransitionsOnly(t *testing.T) {
	m := NewManualMonitor(false)

	var seen []bool
	unsubscribe := m.Subscribe(func(online bool) { seen = append(seen, online) })

	m.Set(false)
	m.Set(true)
	m.Set(true)
	m.Set(false)
	assert.Equal(t, []bool{true, false}, seen)

	unsubscribe()
	m.Set(true)
	assert.Len(t, seen, 2)
	assert.True(t, m.Online())
}

func TestProbeMonitor_Probe(t *testing.T) {
	p := &fakePinger{}
	m := NewProbeMonitor(p, time.Hour, time.Second, newTestLogger())
	assert.False(t, m.Online())

	var (
		mu   sync.Mutex
		seen []bool
	)
	m.Subscribe(func(online bool) {
		mu.Lock()
		seen = append(seen, online)
		mu.Unlock()
	})

	assert.True(t, m.Probe(context.Background()))
	assert.True(t, m.Probe(context.Background()))
	p.fail.Store(true)
	assert.False(t, m.Probe(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestProbeMonitor_RunStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &fakePinger{}
	m := NewProbeMonitor(p, 5*time.Millisecond, time.Second, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, m.Online())

	cancel()
	<-done
}
