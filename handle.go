package mvi

import (
	"context"
	"sync"
)

// Handle is the view-facing access point for one state kind. The container
// is created on first use and lives until Close or until ctx is done.
type Handle[S any, O any] struct {
	ctx   context.Context
	store *RootStore
	def   Definition[S, O]
	opts  []ContainerOption

	mu        sync.Mutex
	container *Container[S, O]
	closed    bool
}

// NewHandle returns a handle for def. Nothing is created until first use.
func NewHandle[S any, O any](ctx context.Context, store *RootStore, def Definition[S, O], opts ...ContainerOption) *Handle[S, O] {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Handle[S, O]{
		ctx:   ctx,
		store: store,
		def:   def,
		opts:  opts,
	}
}

// Container returns the live container, creating it if needed
func (h *Handle[S, O]) Container() (*Container[S, O], error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrContainerClosed
	}
	if h.container != nil {
		select {
		case <-h.container.Done():
			return nil, ErrContainerClosed
		default:
			return h.container, nil
		}
	}

	c, err := NewContainer(h.ctx, h.store, h.def, h.opts...)
	if err != nil {
		return nil, err
	}
	h.container = c
	return c, nil
}

// State returns the state flow, creating the container if needed
func (h *Handle[S, O]) State() (*StateFlow[S], error) {
	c, err := h.Container()
	if err != nil {
		return nil, err
	}
	return c.State(), nil
}

// Get returns the current state, creating the container if needed
func (h *Handle[S, O]) Get() (S, error) {
	c, err := h.Container()
	if err != nil {
		var zero S
		return zero, err
	}
	return c.State().Value(), nil
}

// Peek returns the current state without creating the container
func (h *Handle[S, O]) Peek() (S, bool) {
	h.mu.Lock()
	c := h.container
	h.mu.Unlock()

	if c == nil {
		var zero S
		return zero, false
	}
	return c.State().Value(), true
}

// Effects subscribes to the effect stream
func (h *Handle[S, O]) Effects(ctx context.Context) (<-chan O, error) {
	c, err := h.Container()
	if err != nil {
		return nil, err
	}
	return c.Effects(ctx), nil
}

// Dispatch sends an intention to the container
func (h *Handle[S, O]) Dispatch(intention any) error {
	c, err := h.Container()
	if err != nil {
		return err
	}
	c.Dispatch(intention)
	return nil
}

// Invoke is an alias for Dispatch
func (h *Handle[S, O]) Invoke(intention any) error {
	return h.Dispatch(intention)
}

// IsActive checks if the container has been created and is still open
func (h *Handle[S, O]) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.container == nil {
		return false
	}
	select {
	case <-h.container.Done():
		return false
	default:
		return true
	}
}

// Close closes the container; the handle cannot be reused afterwards
func (h *Handle[S, O]) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	c := h.container
	h.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}
