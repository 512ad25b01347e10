package mvi

import (
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrUnregisteredState is returned when no container is registered for a state kind.
	ErrUnregisteredState = errors.New("unregistered state kind")

	// ErrAlreadyRegistered is returned when a live container already owns a state kind.
	ErrAlreadyRegistered = errors.New("state kind already registered")

	// ErrContainerClosed is returned by operations on a closed container.
	ErrContainerClosed = errors.New("container closed")

	// ErrPoolClosed is returned by Pool.Do after the pool is closed.
	ErrPoolClosed = errors.New("pool closed")
)

// LookupError reports a state lookup for a kind without a live container.
type LookupError struct {
	Kind Kind
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("no state container for %s: %v", e.Kind, ErrUnregisteredState)
}

func (e *LookupError) Unwrap() error {
	return ErrUnregisteredState
}

// FeatureError is a failure inside a feature task. Panics are recovered and
// carried in Panic with the stack at the point of recovery.
type FeatureError struct {
	Feature    string
	Cause      error
	Panic      any
	StackTrace []byte
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %s failed: %v", e.Feature, e.Cause)
}

func (e *FeatureError) Unwrap() error {
	return e.Cause
}

// ReduceError is a failure while folding an outcome into state.
type ReduceError struct {
	Kind       Kind
	Outcome    any
	Cause      error
	StackTrace []byte
}

func (e *ReduceError) Error() string {
	return fmt.Sprintf("reduce %s with %T: %v", e.Kind, e.Outcome, e.Cause)
}

func (e *ReduceError) Unwrap() error {
	return e.Cause
}

// CleanupError contains information about a cleanup failure
type CleanupError struct {
	Owner string
	Err   error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup %s: %v", e.Owner, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

func newFeaturePanic(feature string, recovered any) *FeatureError {
	return &FeatureError{
		Feature:    feature,
		Cause:      fmt.Errorf("panic in feature: %v", recovered),
		Panic:      recovered,
		StackTrace: debug.Stack(),
	}
}

func newReducePanic(kind Kind, outcome any, recovered any) *ReduceError {
	return &ReduceError{
		Kind:       kind,
		Outcome:    outcome,
		Cause:      fmt.Errorf("panic in reducer: %v", recovered),
		StackTrace: debug.Stack(),
	}
}
