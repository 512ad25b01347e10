package mvi

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// Observable is the type-erased view of a state flow returned by
// Store.ObserveStates.
type Observable interface {
	Kind() Kind
	Current() any
}

// StateFlow holds the current state of a container and streams its changes.
// Consecutive equal values are not re-emitted.
type StateFlow[S any] struct {
	mu     sync.RWMutex
	value  S
	subs   map[string]chan S
	closed bool
	done   chan struct{}
	equal  func(a, b S) bool
}

func newStateFlow[S any](initial S, equal func(a, b S) bool) *StateFlow[S] {
	if equal == nil {
		equal = func(a, b S) bool { return reflect.DeepEqual(a, b) }
	}
	return &StateFlow[S]{
		value: initial,
		subs:  make(map[string]chan S),
		done:  make(chan struct{}),
		equal: equal,
	}
}

// Value returns the current state.
func (f *StateFlow[S]) Value() S {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// Subscribe streams the current state followed by every change. A slow
// reader only ever sees the latest value. The channel is closed when ctx is
// done or the flow's container closes.
func (f *StateFlow[S]) Subscribe(ctx context.Context) <-chan S {
	ch := make(chan S, 1)

	f.mu.Lock()
	ch <- f.value
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	id := uuid.NewString()
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			f.unsubscribe(id)
		case <-f.done:
		}
	}()

	return ch
}

// Kind returns the state kind.
func (f *StateFlow[S]) Kind() Kind {
	return KindOf[S]()
}

// Current returns the current state as any.
func (f *StateFlow[S]) Current() any {
	return f.Value()
}

// set publishes next and reports whether it differs from the previous value.
func (f *StateFlow[S]) set(next S) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.equal(f.value, next) {
		return false
	}
	f.value = next

	for _, ch := range f.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
	return true
}

func (f *StateFlow[S]) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
	close(f.done)
}

func (f *StateFlow[S]) unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.subs[id]; ok {
		close(ch)
		delete(f.subs, id)
	}
}

// ObserveStates returns the live state flow of kind S from store.
func ObserveStates[S any](store Store) (*StateFlow[S], error) {
	obs, err := store.ObserveStates(KindOf[S]())
	if err != nil {
		return nil, err
	}
	flow, ok := obs.(*StateFlow[S])
	if !ok {
		return nil, &LookupError{Kind: KindOf[S]()}
	}
	return flow, nil
}
