package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		legal    bool
	}{
		{StateIdle, StatePushing, true},
		{StateIdle, StatePulling, true},
		{StatePushing, StateReconciling, true},
		{StateReconciling, StatePulling, true},
		{StatePulling, StateIdle, true},
		{StatePushing, StateError, true},
		{StatePulling, StateError, true},
		{StateError, StateIdle, true},
		{StatePushing, StatePulling, false},
		{StateIdle, StateReconciling, false},
		{StatePulling, StatePushing, false},
		{StateError, StatePushing, false},
		{StateIdle, StateError, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.legal, CanTransition(tt.from, tt.to))
		})
	}
}

func TestMachine_Guard(t *testing.T) {
	m := newMachine()
	require.NoError(t, m.begin(StatePushing))

	err := m.begin(StatePushing)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	assert.ErrorIs(t, m.transition(StatePulling), ErrIllegalTransition)
	assert.Equal(t, StatePushing, m.current())

	require.NoError(t, m.transition(StateError))
	require.NoError(t, m.transition(StateIdle))
	assert.NoError(t, m.begin(StatePulling))
}
