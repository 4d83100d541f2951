package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := NewBus(newTestLogger())

	var got []string
	b.Subscribe(func(e Event) { got = append(got, "a:"+string(e.Type)) })
	sub := b.Subscribe(func(e Event) { got = append(got, "b:"+string(e.Type)) })

	b.Publish(Event{Type: EventSyncStart})
	assert.Equal(t, []string{"a:sync_start", "b:sync_start"}, got)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 1, b.Len())

	b.Publish(Event{Type: EventSyncComplete})
	assert.Equal(t, []string{"a:sync_start", "b:sync_start", "a:sync_complete"}, got)
}

func TestBus_PanickingListenerDoesNotStopOthers(t *testing.T) {
	b := NewBus(newTestLogger())

	called := false
	b.Subscribe(func(Event) { panic("boom") })
	b.Subscribe(func(Event) { called = true })

	assert.NotPanics(t, func() { b.Publish(Event{Type: EventPushStart}) })
	assert.True(t, called)
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBus(newTestLogger())
	b.Publish(Event{Type: EventSyncStart})

	var got []EventType
	b.Subscribe(func(e Event) { got = append(got, e.Type) })
	b.Publish(Event{Type: EventSyncError})
	assert.Equal(t, []EventType{EventSyncError}, got)
}

func TestBus_SubscribeContext(t *testing.T) {
	b := NewBus(newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())

	b.SubscribeContext(ctx, func(Event) {})
	assert.Equal(t, 1, b.Len())

	cancel()
	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, time.Millisecond)
}
