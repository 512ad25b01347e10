package mvi

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pumped-fn/pumped-mvi/pkg/stream"
)

// Dispatcher bridges one intention stream to a set of features and merges
// their outcomes into a single stream.
//
// Every feature gets a private unbounded mailbox and its own goroutine.
// Outcomes of one feature keep their emission order on the merged stream;
// outcomes of different features interleave in no guaranteed order.
type Dispatcher[O any] struct {
	store     Store
	features  []*Feature[O]
	mailboxes []*stream.Mailbox[any]
	outcomes  *stream.Hub[O]

	onFailure func(*FeatureError)
	onCleanup func(*CleanupError)
	logger    *slog.Logger

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type dispatcherOptions struct {
	onFailure func(*FeatureError)
	onCleanup func(*CleanupError)
	logger    *slog.Logger
}

// DispatcherOption is a modifier for dispatchers
type DispatcherOption func(*dispatcherOptions)

// WithFailureHandler receives every feature task failure.
func WithFailureHandler(fn func(*FeatureError)) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.onFailure = fn
	}
}

// WithCleanupHandler receives every failed feature cleanup.
func WithCleanupHandler(fn func(*CleanupError)) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.onCleanup = fn
	}
}

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.logger = logger
	}
}

// NewDispatcher creates a dispatcher over features. Nothing runs until Start.
func NewDispatcher[O any](store Store, features []*Feature[O], opts ...DispatcherOption) *Dispatcher[O] {
	cfg := dispatcherOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d := &Dispatcher[O]{
		store:     store,
		features:  features,
		mailboxes: make([]*stream.Mailbox[any], len(features)),
		outcomes:  stream.NewHub[O](),
		onFailure: cfg.onFailure,
		onCleanup: cfg.onCleanup,
		logger:    cfg.logger,
	}

	for i, f := range features {
		d.mailboxes[i] = stream.NewMailbox[any]()
		if d.onCleanup != nil {
			f.scope.setCleanupHook(d.onCleanup)
		}
	}

	return d
}

// Outcomes subscribes to the merged outcome stream. Subscribers attached
// before Start see every outcome; all subscribers see the same order.
func (d *Dispatcher[O]) Outcomes(ctx context.Context) <-chan O {
	return d.outcomes.Subscribe(ctx).C
}

// Start launches one task per feature. A feature already running under
// another dispatcher is skipped.
func (d *Dispatcher[O]) Start() {
	if d.closed.Load() || !d.started.CompareAndSwap(false, true) {
		return
	}

	for i, f := range d.features {
		if !f.started.CompareAndSwap(false, true) {
			d.logger.Warn("feature already started, skipping", "feature", f.Name())
			continue
		}

		intentions := d.mailboxes[i].Out()
		f.scope.Go(func(ctx context.Context) {
			if err := f.execute(ctx, intentions, d.store, d.emit); err != nil {
				d.fail(f, err)
			}
		})
	}
}

// Dispatch hands intention to every feature. It never blocks; after Close it
// does nothing.
func (d *Dispatcher[O]) Dispatch(intention any) {
	if d.closed.Load() {
		return
	}
	for _, mb := range d.mailboxes {
		mb.Push(intention)
	}
}

// Features returns the registered features.
func (d *Dispatcher[O]) Features() []AnyFeature {
	features := make([]AnyFeature, len(d.features))
	for i, f := range d.features {
		features[i] = f
	}
	return features
}

// Close stops delivery, closes every feature scope and waits for the feature
// tasks before closing the outcome stream.
func (d *Dispatcher[O]) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)

		for _, mb := range d.mailboxes {
			mb.Close()
		}

		var errs []error
		for _, f := range d.features {
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		d.outcomes.Close()
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

func (d *Dispatcher[O]) emit(outcome O) {
	d.outcomes.Publish(outcome)
}

func (d *Dispatcher[O]) fail(f *Feature[O], err error) {
	var featureErr *FeatureError
	if !errors.As(err, &featureErr) {
		featureErr = &FeatureError{
			Feature: f.Name(),
			Cause:   err,
		}
	}

	if d.onFailure != nil {
		d.onFailure(featureErr)
		return
	}
	d.logger.Error("feature failed",
		"feature", featureErr.Feature,
		"error", featureErr.Cause,
	)
}
