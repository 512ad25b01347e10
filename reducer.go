package mvi

import (
	"reflect"
	"sync"
)

// Reducer folds an outcome into a new state. Implementations must be pure and
// must not mutate prev.
type Reducer[S any, O any] interface {
	Reduce(prev S, outcome O) S
}

// ReducerFunc adapts a function to Reducer.
type ReducerFunc[S any, O any] func(prev S, outcome O) S

func (f ReducerFunc[S, O]) Reduce(prev S, outcome O) S {
	return f(prev, outcome)
}

// DefaultReducer resolves, per outcome, the outcome's own reduction or a
// reducer registered for the outcome's exact concrete type. Outcomes matching
// neither leave the state unchanged.
type DefaultReducer[S any, O any] struct {
	mu    sync.RWMutex
	table map[reflect.Type]func(S, any) S
}

// NewDefaultReducer creates a reducer with an empty table.
func NewDefaultReducer[S any, O any]() *DefaultReducer[S, O] {
	return &DefaultReducer[S, O]{
		table: make(map[reflect.Type]func(S, any) S),
	}
}

// On registers fn for outcomes whose concrete type is exactly T. A later
// registration for the same T replaces the earlier one.
//
//	r := mvi.NewDefaultReducer[CounterState, CounterOutcome]()
//	mvi.On(r, func(prev CounterState, o Changed) CounterState {
//	    prev.Count += o.Delta
//	    return prev
//	})
func On[S any, O any, T any](r *DefaultReducer[S, O], fn func(prev S, outcome T) S) *DefaultReducer[S, O] {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.table[reflect.TypeFor[T]()] = func(prev S, outcome any) S {
		return fn(prev, outcome.(T))
	}
	return r
}

// Handles reports whether a reducer is registered for the dynamic type of outcome.
func (r *DefaultReducer[S, O]) Handles(outcome O) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.table[reflect.TypeOf(outcome)]
	return ok
}

func (r *DefaultReducer[S, O]) Reduce(prev S, outcome O) S {
	if self, ok := any(outcome).(ReducingOutcome[S]); ok {
		return self.Reduce(prev)
	}

	r.mu.RLock()
	fn, ok := r.table[reflect.TypeOf(outcome)]
	r.mu.RUnlock()

	if !ok {
		return prev
	}
	return fn(prev, outcome)
}
