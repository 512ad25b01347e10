package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_SameOrderForEverySubscriber(t *testing.T) {
	hub := NewHub[int]()
	defer hub.Close()

	ctx := context.Background()
	a := hub.Subscribe(ctx)
	b := hub.Subscribe(ctx)

	for i := 0; i < 50; i++ {
		hub.Publish(i)
	}

	for i := 0; i < 50; i++ {
		assert.Equal(t, i, receive(t, a.C))
		assert.Equal(t, i, receive(t, b.C))
	}
}

func TestHub_LateSubscriberMissesEarlierValues(t *testing.T) {
	hub := NewHub[string]()
	defer hub.Close()

	hub.Publish("before")
	sub := hub.Subscribe(context.Background())
	hub.Publish("after")

	assert.Equal(t, "after", receive(t, sub.C))
}

func TestHub_ContextCancelDetaches(t *testing.T) {
	hub := NewHub[int]()
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := hub.Subscribe(ctx)
	require.Equal(t, 1, hub.Subscribers())

	cancel()

	require.Eventually(t, func() bool {
		return hub.Subscribers() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestHub_CloseClosesSubscribers(t *testing.T) {
	hub := NewHub[int]()
	sub := hub.Subscribe(context.Background())

	hub.Close()
	hub.Close()

	assert.False(t, hub.Publish(1))
	_, ok := <-sub.C
	assert.False(t, ok)

	late := hub.Subscribe(context.Background())
	_, ok = <-late.C
	assert.False(t, ok)
}

func TestSubscription_Cancel(t *testing.T) {
	hub := NewHub[int]()
	defer hub.Close()

	sub := hub.Subscribe(context.Background())
	sub.Cancel()

	assert.Equal(t, 0, hub.Subscribers())
	_, ok := <-sub.C
	assert.False(t, ok)
}
