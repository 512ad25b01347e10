package mvi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pumped-fn/pumped-mvi/pkg/stream"
)

// FailurePolicy decides what a container does when a feature task or a
// reduction fails.
type FailurePolicy int

const (
	// PolicyIsolate stops only the failing feature. A failed reduction leaves
	// the state unchanged. Failures are logged and reported to extensions.
	PolicyIsolate FailurePolicy = iota
	// PolicyPropagate closes the whole container on the first failure.
	// Container.Err returns the cause.
	PolicyPropagate
)

func (p FailurePolicy) String() string {
	switch p {
	case PolicyIsolate:
		return "isolate"
	case PolicyPropagate:
		return "propagate"
	default:
		return fmt.Sprintf("FailurePolicy(%d)", int(p))
	}
}

// ParseFailurePolicy parses "isolate" or "propagate".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "isolate":
		return PolicyIsolate, nil
	case "propagate":
		return PolicyPropagate, nil
	default:
		return PolicyIsolate, fmt.Errorf("unknown failure policy %q", s)
	}
}

// Definition describes how to build a container for state S. Features is
// called once per container so every container owns fresh features.
type Definition[S any, O any] struct {
	Name     string
	Default  S
	Reducer  Reducer[S, O]
	Features func() []*Feature[O]

	// Equal decides whether two states are the same. Defaults to reflect.DeepEqual.
	Equal func(a, b S) bool
}

// Create builds and starts a container from the definition.
func (d Definition[S, O]) Create(ctx context.Context, store *RootStore, opts ...ContainerOption) (*Container[S, O], error) {
	return NewContainer(ctx, store, d, opts...)
}

type containerOptions struct {
	name   string
	policy *FailurePolicy
	logger *slog.Logger
}

// ContainerOption is a modifier for containers
type ContainerOption func(*containerOptions)

// WithContainerName overrides the definition name.
func WithContainerName(name string) ContainerOption {
	return func(o *containerOptions) {
		o.name = name
	}
}

// WithContainerPolicy overrides the store failure policy for one container.
func WithContainerPolicy(policy FailurePolicy) ContainerOption {
	return func(o *containerOptions) {
		o.policy = &policy
	}
}

// WithContainerLogger overrides the store logger for one container.
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// Container owns the current value of one state kind, its effect stream and
// the routing of intentions to its features.
//
// Three consumers read the dispatcher's merged outcome stream: the state fold,
// which applies reductions one at a time; the effect forwarder; and the
// intention rerouter. Closing the container cancels all of them together with
// every feature.
type Container[S any, O any] struct {
	id     string
	name   string
	kind   Kind
	store  *RootStore
	policy FailurePolicy
	logger *slog.Logger

	reducer    Reducer[S, O]
	dispatcher *Dispatcher[O]
	state      *StateFlow[S]
	effects    *stream.Hub[O]
	scope      *ResourceScope

	consumersDone chan struct{}
	done          chan struct{}
	closed        atomic.Bool
	closeOnce     sync.Once
	closeErr      error

	errMu sync.Mutex
	err   error
}

// NewContainer registers a container for S in store and starts its features.
// It fails with ErrAlreadyRegistered when a live container owns S. Cancelling
// ctx closes the container.
func NewContainer[S any, O any](ctx context.Context, store *RootStore, def Definition[S, O], opts ...ContainerOption) (*Container[S, O], error) {
	if store == nil {
		return nil, errors.New("container requires a store")
	}

	cfg := containerOptions{
		name:   def.Name,
		logger: store.Logger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	kind := KindOf[S]()
	if cfg.name == "" {
		cfg.name = kind.String()
	}
	policy := store.Policy()
	if cfg.policy != nil {
		policy = *cfg.policy
	}

	reducer := def.Reducer
	if reducer == nil {
		reducer = NewDefaultReducer[S, O]()
	}

	var features []*Feature[O]
	if def.Features != nil {
		features = def.Features()
	}

	c := &Container[S, O]{
		id:            uuid.NewString(),
		name:          cfg.name,
		kind:          kind,
		store:         store,
		policy:        policy,
		reducer:       reducer,
		state:         newStateFlow(def.Default, def.Equal),
		effects:       stream.NewHub[O](),
		scope:         NewResourceScope(context.Background(), "container:"+cfg.name),
		consumersDone: make(chan struct{}),
		done:          make(chan struct{}),
	}
	c.logger = cfg.logger.With("container", c.name, "kind", kind.String())
	c.scope.setCleanupHook(c.cleanupFailed)
	c.dispatcher = NewDispatcher(store, features,
		WithFailureHandler(c.featureFailed),
		WithCleanupHandler(c.cleanupFailed),
		WithDispatcherLogger(c.logger),
	)

	if err := store.register(c); err != nil {
		_ = c.dispatcher.Close()
		_ = c.scope.Close()
		return nil, err
	}

	scopeCtx := c.scope.Context()
	folded := c.dispatcher.Outcomes(scopeCtx)
	forwarded := c.dispatcher.Outcomes(scopeCtx)
	rerouted := c.dispatcher.Outcomes(scopeCtx)

	g, gctx := errgroup.WithContext(scopeCtx)
	g.Go(func() error { return c.foldStates(gctx, folded) })
	g.Go(func() error { return c.forwardEffects(gctx, forwarded) })
	g.Go(func() error { return c.rerouteIntentions(gctx, rerouted) })

	go func() {
		err := g.Wait()
		close(c.consumersDone)
		if err != nil {
			c.fail(err)
		}
	}()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				c.CloseAsync()
			case <-c.done:
			}
		}()
	}

	c.dispatcher.Start()

	info := c.Info()
	store.each(func(ext Extension) {
		ext.OnContainerOpen(info)
	})
	c.logger.Debug("container opened", "id", c.id, "features", len(features))

	return c, nil
}

// ID returns the unique container id.
func (c *Container[S, O]) ID() string {
	return c.id
}

// Name returns the container name.
func (c *Container[S, O]) Name() string {
	return c.name
}

// Kind returns the state kind the container is registered under.
func (c *Container[S, O]) Kind() Kind {
	return c.kind
}

// Store returns the root store the container is registered in.
func (c *Container[S, O]) Store() *RootStore {
	return c.store
}

// Info describes the container for extensions.
func (c *Container[S, O]) Info() ContainerInfo {
	return ContainerInfo{
		ID:       c.id,
		Name:     c.name,
		Kind:     c.kind,
		Features: c.dispatcher.Features(),
	}
}

// State returns the state flow. It keeps its last value after Close.
func (c *Container[S, O]) State() *StateFlow[S] {
	return c.state
}

// Effects subscribes to effect outcomes produced from now on. Effects are not
// replayed to late subscribers.
func (c *Container[S, O]) Effects(ctx context.Context) <-chan O {
	return c.effects.Subscribe(ctx).C
}

// Dispatch routes intention without waiting for it to be processed: global
// intentions are broadcast through the store, the rest go to this
// container's features. After Close it does nothing.
func (c *Container[S, O]) Dispatch(intention any) {
	if c.closed.Load() {
		return
	}

	op := &Operation{
		Kind:      OpDispatch,
		Container: c.Info(),
		Intention: intention,
	}
	_, err := c.store.wrap(context.Background(), op, func() (any, error) {
		if IsGlobal(intention) {
			c.store.Dispatch(intention)
			return nil, nil
		}
		c.dispatcher.Dispatch(intention)
		return nil, nil
	})
	if err != nil {
		c.logger.Warn("dispatch interrupted",
			"intention", fmt.Sprintf("%T", intention),
			"error", err,
		)
	}
}

// Invoke is an alias for Dispatch
func (c *Container[S, O]) Invoke(intention any) {
	c.Dispatch(intention)
}

// Done is closed once the container has fully closed.
func (c *Container[S, O]) Done() <-chan struct{} {
	return c.done
}

// Err returns the failure that closed the container under PolicyPropagate.
func (c *Container[S, O]) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close unregisters the container, closes every feature and stops the
// consumers, then waits until all of it has finished. Only the first call
// returns the close error.
//
// Close waits on the container's own tasks, so it must not be called from
// one of its features or from an extension hook; use CloseAsync there.
func (c *Container[S, O]) Close() error {
	first := c.startClose()
	<-c.done

	if !first {
		return nil
	}
	return c.closeErr
}

// CloseAsync starts closing the container and returns Done without waiting.
// It is safe to call from the container's own features and from extension
// hooks.
func (c *Container[S, O]) CloseAsync() <-chan struct{} {
	c.startClose()
	return c.done
}

// startClose reports whether this call started the teardown.
func (c *Container[S, O]) startClose() bool {
	first := false
	c.closeOnce.Do(func() {
		first = true
		c.closed.Store(true)
		c.store.unregister(c)
		go c.teardown()
	})
	return first
}

func (c *Container[S, O]) teardown() {
	var errs []error
	if err := c.dispatcher.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.scope.Close(); err != nil {
		errs = append(errs, err)
	}
	<-c.consumersDone

	c.effects.Close()
	c.state.close()
	c.closeErr = errors.Join(errs...)

	info := c.Info()
	cause := c.Err()
	c.store.each(func(ext Extension) {
		ext.OnContainerClose(info, cause)
	})
	c.logger.Debug("container closed", "id", c.id)

	close(c.done)
}

// deliver hands a broadcast intention to the local features.
func (c *Container[S, O]) deliver(intention any) {
	if c.closed.Load() {
		return
	}
	c.dispatcher.Dispatch(intention)
}

func (c *Container[S, O]) observable() Observable {
	return c.state
}

func (c *Container[S, O]) foldStates(ctx context.Context, outcomes <-chan O) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case outcome, ok := <-outcomes:
			if !ok {
				return nil
			}
			if err := c.fold(ctx, outcome); err != nil {
				return err
			}
		}
	}
}

func (c *Container[S, O]) fold(ctx context.Context, outcome O) error {
	if IsEffect(outcome) {
		if _, ok := any(outcome).(ReducingOutcome[S]); !ok {
			return nil
		}
	}

	prev := c.state.Value()
	var next S
	op := &Operation{
		Kind:      OpReduce,
		Container: c.Info(),
		Outcome:   outcome,
	}
	_, err := c.store.wrap(ctx, op, func() (any, error) {
		var err error
		next, err = c.reduce(prev, outcome)
		return next, err
	})
	if err != nil {
		var reduceErr *ReduceError
		if !errors.As(err, &reduceErr) {
			reduceErr = &ReduceError{
				Kind:    c.kind,
				Outcome: outcome,
				Cause:   err,
			}
		}

		c.logger.Error("reduce failed",
			"outcome", fmt.Sprintf("%T", outcome),
			"error", reduceErr.Cause,
		)
		info := c.Info()
		c.store.each(func(ext Extension) {
			ext.OnReduceError(info, reduceErr)
		})

		if c.policy == PolicyPropagate {
			return reduceErr
		}
		return nil
	}

	if c.state.set(next) {
		info := c.Info()
		c.store.each(func(ext Extension) {
			ext.OnStateChange(info, prev, next)
		})
	}
	return nil
}

func (c *Container[S, O]) reduce(prev S, outcome O) (next S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newReducePanic(c.kind, outcome, r)
		}
	}()
	return c.reducer.Reduce(prev, outcome), nil
}

func (c *Container[S, O]) forwardEffects(ctx context.Context, outcomes <-chan O) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case outcome, ok := <-outcomes:
			if !ok {
				return nil
			}
			if !IsEffect(outcome) {
				continue
			}
			c.effects.Publish(outcome)

			info := c.Info()
			c.store.each(func(ext Extension) {
				ext.OnEffect(info, outcome)
			})
		}
	}
}

func (c *Container[S, O]) rerouteIntentions(ctx context.Context, outcomes <-chan O) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case outcome, ok := <-outcomes:
			if !ok {
				return nil
			}
			if carrier, ok := any(outcome).(IntentionOutcome); ok {
				c.Dispatch(carrier.Intention())
			}
		}
	}
}

func (c *Container[S, O]) featureFailed(err *FeatureError) {
	c.logger.Error("feature failed",
		"feature", err.Feature,
		"error", err.Cause,
		"policy", c.policy.String(),
	)

	info := c.Info()
	c.store.each(func(ext Extension) {
		ext.OnFeatureError(info, err)
	})

	if c.policy == PolicyPropagate {
		c.fail(err)
	}
}

func (c *Container[S, O]) cleanupFailed(err *CleanupError) {
	c.logger.Warn("cleanup failed", "owner", err.Owner, "error", err.Err)
	c.store.each(func(ext Extension) {
		ext.OnCleanupError(err)
	})
}

func (c *Container[S, O]) fail(err error) {
	c.errMu.Lock()
	if c.err == nil && !c.closed.Load() {
		c.err = err
	}
	c.errMu.Unlock()

	c.CloseAsync()
}
