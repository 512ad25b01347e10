package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub broadcasts published values to every current subscriber. Late
// subscribers never see values published before they subscribed.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[string]*Mailbox[T]
	closed bool
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subs: make(map[string]*Mailbox[T]),
	}
}

// Subscription is a live registration on a hub.
type Subscription[T any] struct {
	ID string
	C  <-chan T

	hub *Hub[T]
}

// Cancel removes the subscription and closes C.
func (s *Subscription[T]) Cancel() {
	s.hub.unsubscribe(s.ID)
}

// Subscribe registers a subscriber that stays attached until ctx is done,
// Cancel is called or the hub is closed. Subscribing to a closed hub yields
// an already closed channel.
func (h *Hub[T]) Subscribe(ctx context.Context) *Subscription[T] {
	mb := NewMailbox[T]()
	sub := &Subscription[T]{
		ID:  uuid.NewString(),
		C:   mb.Out(),
		hub: h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		mb.Close()
		return sub
	}
	h.subs[sub.ID] = mb
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			h.unsubscribe(sub.ID)
		case <-mb.Done():
		}
	}()

	return sub
}

// Publish delivers v to every subscriber. It never blocks and reports false
// when the hub is closed.
func (h *Hub[T]) Publish(v T) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	for _, mb := range h.subs {
		mb.Push(v)
	}
	return true
}

// Subscribers returns the number of attached subscribers.
func (h *Hub[T]) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches and closes every subscriber. Further publishes are dropped.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Mailbox[T])
	h.mu.Unlock()

	for _, mb := range subs {
		mb.Close()
	}
}

func (h *Hub[T]) unsubscribe(id string) {
	h.mu.Lock()
	mb, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()

	if ok {
		mb.Close()
	}
}
