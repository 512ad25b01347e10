package mvi

import "reflect"

// Kind identifies a state or outcome type at runtime.
type Kind struct {
	t reflect.Type
}

// KindOf returns the kind of S.
func KindOf[S any]() Kind {
	return Kind{t: reflect.TypeFor[S]()}
}

// KindOfValue returns the dynamic kind of v.
func KindOfValue(v any) Kind {
	return Kind{t: reflect.TypeOf(v)}
}

// Type returns the underlying reflect.Type (nil for the zero Kind).
func (k Kind) Type() reflect.Type {
	return k.t
}

func (k Kind) String() string {
	if k.t == nil {
		return "<nil>"
	}
	return k.t.String()
}

// ReducingOutcome is an outcome that carries its own reduction. It takes
// precedence over any reducer registered for its kind.
type ReducingOutcome[S any] interface {
	Reduce(prev S) S
}

// EffectOutcome marks outcomes that are forwarded on the effect stream.
// Implement it by embedding Effect.
type EffectOutcome interface {
	effectOutcome()
}

// Effect is embedded in outcome types to make them effects.
type Effect struct{}

func (Effect) effectOutcome() {}

// IntentionOutcome wraps an intention that is dispatched again once the
// outcome is produced.
type IntentionOutcome interface {
	Intention() any
}

// GlobalIntention marks intentions that are broadcast to every registered
// container. Implement it by embedding Global.
type GlobalIntention interface {
	globalIntention()
}

// Global is embedded in intention types to make them global.
type Global struct{}

func (Global) globalIntention() {}

// IsGlobal reports whether intention is broadcast through the root store.
func IsGlobal(intention any) bool {
	_, ok := intention.(GlobalIntention)
	return ok
}

// IsEffect reports whether outcome belongs on the effect stream.
func IsEffect(outcome any) bool {
	_, ok := outcome.(EffectOutcome)
	return ok
}
