package mvi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateFlow_SubscribeStartsWithCurrent(t *testing.T) {
	flow := newStateFlow(testState{Count: 5}, nil)
	defer flow.close()

	ch := flow.Subscribe(context.Background())

	assert.Equal(t, testState{Count: 5}, receive(t, ch))
}

func TestStateFlow_SkipsEqualValues(t *testing.T) {
	flow := newStateFlow(testState{}, nil)
	defer flow.close()

	ch := flow.Subscribe(context.Background())
	receive(t, ch)

	assert.False(t, flow.set(testState{}))
	assert.True(t, flow.set(testState{Count: 1}))

	assert.Equal(t, testState{Count: 1}, receive(t, ch))
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %+v", v)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStateFlow_SlowReaderSeesLatest(t *testing.T) {
	flow := newStateFlow(0, nil)
	defer flow.close()

	ch := flow.Subscribe(context.Background())
	receive(t, ch)

	for i := 1; i <= 10; i++ {
		flow.set(i)
	}

	assert.Equal(t, 10, receive(t, ch))
	assert.Equal(t, 10, flow.Value())
}

func TestStateFlow_CustomEquality(t *testing.T) {
	sameParity := func(a, b int) bool { return a%2 == b%2 }
	flow := newStateFlow(0, sameParity)
	defer flow.close()

	assert.False(t, flow.set(2))
	assert.True(t, flow.set(3))
	assert.Equal(t, 3, flow.Value())
}

func TestStateFlow_CloseEndsSubscriptions(t *testing.T) {
	flow := newStateFlow(testState{Count: 1}, nil)

	ch := flow.Subscribe(context.Background())
	receive(t, ch)

	flow.close()
	flow.close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.False(t, flow.set(testState{Count: 2}))
	assert.Equal(t, testState{Count: 1}, flow.Value())

	late := flow.Subscribe(context.Background())
	v, ok := <-late
	require.True(t, ok)
	assert.Equal(t, testState{Count: 1}, v)
	_, ok = <-late
	assert.False(t, ok)
}

func TestStateFlow_ContextCancelUnsubscribes(t *testing.T) {
	flow := newStateFlow(0, nil)
	defer flow.close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := flow.Subscribe(ctx)
	receive(t, ch)

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestStateFlow_Observable(t *testing.T) {
	flow := newStateFlow(testState{Count: 9}, nil)
	defer flow.close()

	var obs Observable = flow
	assert.Equal(t, KindOf[testState](), obs.Kind())
	assert.Equal(t, testState{Count: 9}, obs.Current())
}
