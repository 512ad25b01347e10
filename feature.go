package mvi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// FeatureMode tells streaming features from single-shot ones.
type FeatureMode string

const (
	// ModeStream receives the whole intention stream and emits any number of outcomes.
	ModeStream FeatureMode = "stream"
	// ModeSingle turns every accepted intention into exactly one outcome.
	ModeSingle FeatureMode = "single"
)

// StreamFunc is the body of a streaming feature. It receives every intention
// dispatched to its container, filters them itself and emits outcomes through
// emit. It must return when ctx is done or intentions is closed; returning an
// error is a task failure.
type StreamFunc[O any] func(ctx context.Context, intentions <-chan any, store Store, emit func(O)) error

// SingleFunc is the body of a single-shot feature: one intention in, one
// outcome out.
type SingleFunc[O any] func(ctx context.Context, intention any, store Store) (O, error)

// AnyFeature is the type-erased view of a feature used by extensions.
type AnyFeature interface {
	Tagged
	Name() string
	Mode() FeatureMode
	Scope() *ResourceScope
	Pool() *Pool
}

// Feature is a unit of behaviour registered with a dispatcher. It is
// constructed once and owns a resource scope that is closed with it.
type Feature[O any] struct {
	run   StreamFunc[O]
	mode  FeatureMode
	pool  *Pool
	scope *ResourceScope

	tagMu sync.RWMutex
	tags  map[any]any

	started atomic.Bool
}

// FeatureOption is a modifier for features
type FeatureOption func(AnyFeature)

// WithFeatureTag returns an option that sets a tag on a feature
func WithFeatureTag[T any](tag Tag[T], val T) FeatureOption {
	return func(f AnyFeature) {
		tag.Set(f, val)
	}
}

// WithName names the feature in logs and errors.
func WithName(name string) FeatureOption {
	return WithFeatureTag(featureNameTag, name)
}

// WithPool pins the feature to an execution pool.
func WithPool(pool *Pool) FeatureOption {
	return func(f AnyFeature) {
		if p, ok := f.(interface{ setPool(*Pool) }); ok {
			p.setPool(pool)
		}
	}
}

// Stream creates a streaming feature.
func Stream[O any](run StreamFunc[O], opts ...FeatureOption) *Feature[O] {
	f := newFeature[O](ModeStream, opts)
	f.run = run
	return f
}

// Single creates a single-shot feature that is invoked for every intention.
func Single[O any](invoke SingleFunc[O], opts ...FeatureOption) *Feature[O] {
	f := newFeature[O](ModeSingle, opts)
	f.run = f.singleLoop(func(any) bool { return true }, invoke)
	return f
}

// Typed creates a single-shot feature that only sees intentions of type I.
//
//	increase := mvi.Typed(func(ctx context.Context, _ Increase, _ mvi.Store) (CounterOutcome, error) {
//	    return Changed{Delta: 1}, nil
//	})
func Typed[I any, O any](invoke func(ctx context.Context, intention I, store Store) (O, error), opts ...FeatureOption) *Feature[O] {
	f := newFeature[O](ModeSingle, opts)
	accept := func(intention any) bool {
		_, ok := intention.(I)
		return ok
	}
	f.run = f.singleLoop(accept, func(ctx context.Context, intention any, store Store) (O, error) {
		return invoke(ctx, intention.(I), store)
	})
	return f
}

func newFeature[O any](mode FeatureMode, opts []FeatureOption) *Feature[O] {
	f := &Feature[O]{
		mode: mode,
		tags: make(map[any]any),
	}
	f.tags[featureModeTag] = mode

	for _, opt := range opts {
		opt(f)
	}

	f.scope = NewResourceScope(context.Background(), "feature:"+f.Name())
	return f
}

func (f *Feature[O]) singleLoop(accept func(any) bool, invoke SingleFunc[O]) StreamFunc[O] {
	return func(ctx context.Context, intentions <-chan any, store Store, emit func(O)) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case intention, ok := <-intentions:
				if !ok {
					return nil
				}
				if !accept(intention) {
					continue
				}

				var outcome O
				call := func(ctx context.Context) error {
					var err error
					outcome, err = invoke(ctx, intention, store)
					return err
				}

				var err error
				if f.pool != nil {
					err = f.pool.Do(ctx, call)
				} else {
					err = call(ctx)
				}
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("invoking with %T: %w", intention, err)
				}
				emit(outcome)
			}
		}
	}
}

// execute runs the feature body until it returns, converting a panic into a
// *FeatureError. Streaming features pinned to a pool hold a slot while running.
func (f *Feature[O]) execute(ctx context.Context, intentions <-chan any, store Store, emit func(O)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newFeaturePanic(f.Name(), r)
		}
	}()

	if f.mode == ModeStream && f.pool != nil {
		err = f.pool.Do(ctx, func(ctx context.Context) error {
			return f.run(ctx, intentions, store, emit)
		})
	} else {
		err = f.run(ctx, intentions, store, emit)
	}

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Name returns the feature name, or a generated one if none was set.
func (f *Feature[O]) Name() string {
	if name, ok := featureNameTag.Get(f); ok && name != "" {
		return name
	}
	return fmt.Sprintf("%s_%p", f.mode, f)
}

// Mode returns whether the feature is streaming or single-shot.
func (f *Feature[O]) Mode() FeatureMode {
	return f.mode
}

// Scope returns the feature's resource scope.
func (f *Feature[O]) Scope() *ResourceScope {
	return f.scope
}

// Pool returns the pool the feature is pinned to, or nil.
func (f *Feature[O]) Pool() *Pool {
	return f.pool
}

// Close cancels the feature's work and releases its resources.
func (f *Feature[O]) Close() error {
	return f.scope.Close()
}

func (f *Feature[O]) GetTag(tag any) (any, bool) {
	f.tagMu.RLock()
	defer f.tagMu.RUnlock()
	val, ok := f.tags[tag]
	return val, ok
}

func (f *Feature[O]) SetTag(tag any, val any) {
	f.tagMu.Lock()
	defer f.tagMu.Unlock()
	f.tags[tag] = val
}

func (f *Feature[O]) setPool(pool *Pool) {
	f.pool = pool
}
