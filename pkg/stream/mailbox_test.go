package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestMailbox_FIFO(t *testing.T) {
	mb := NewMailbox[int]()
	defer mb.Close()

	for i := 0; i < 100; i++ {
		require.True(t, mb.Push(i))
	}

	for i := 0; i < 100; i++ {
		assert.Equal(t, i, receive(t, mb.Out()))
	}
}

func TestMailbox_PushNeverBlocks(t *testing.T) {
	mb := NewMailbox[int]()
	defer mb.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			mb.Push(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked without a reader")
	}
	assert.GreaterOrEqual(t, mb.Len(), 9999)
}

func TestMailbox_CloseClosesOut(t *testing.T) {
	mb := NewMailbox[string]()
	mb.Push("dropped")
	mb.Close()
	mb.Close()

	assert.False(t, mb.Push("late"))

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-mb.Out():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("out channel was not closed")
		}
	}
}
