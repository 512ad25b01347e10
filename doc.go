// Package mvi provides a Model-View-Intention state container runtime for Go.
//
// # Overview
//
// An application state is split into kinds. Each kind is owned by one live
// Container, which turns intentions into outcomes and folds outcomes into
// state:
//
//  1. Features: units of work turning intentions into outcomes
//  2. Dispatcher: fans intentions out to every feature and merges their outcomes
//  3. Reducer: folds one outcome into the next state
//  4. Container: owns the state, the effect stream and intention routing
//  5. RootStore: registry of live containers, used for broadcast and lookup
//
// # Basic Usage
//
// Declare the state, the intentions and a closed set of outcomes:
//
//	type CounterState struct{ Count int }
//
//	type Increase struct{}
//
//	type CounterOutcome interface{ counterOutcome() }
//
//	type Changed struct{ Delta int }
//
//	func (Changed) counterOutcome() {}
//
// Describe the container and create it in a store:
//
//	reducer := mvi.NewDefaultReducer[CounterState, CounterOutcome]()
//	mvi.On(reducer, func(prev CounterState, o Changed) CounterState {
//	    prev.Count += o.Delta
//	    return prev
//	})
//
//	counter := mvi.Definition[CounterState, CounterOutcome]{
//	    Name:    "counter",
//	    Reducer: reducer,
//	    Features: func() []*mvi.Feature[CounterOutcome] {
//	        return []*mvi.Feature[CounterOutcome]{
//	            mvi.Typed(func(ctx context.Context, _ Increase, _ mvi.Store) (CounterOutcome, error) {
//	                return Changed{Delta: 1}, nil
//	            }),
//	        }
//	    },
//	}
//
//	store := mvi.NewStore()
//	defer store.Dispose()
//
//	c, err := counter.Create(ctx, store)
//	c.Dispatch(Increase{})
//
//	for state := range c.State().Subscribe(ctx) {
//	    fmt.Println(state.Count)
//	}
//
// # Outcomes
//
// Outcomes gain behaviour through optional interfaces:
//
//	// Self-reducing: wins over any reducer registered for its type
//	func (Decreased) Reduce(prev CounterState) CounterState { ... }
//
//	// Effect: forwarded on Container.Effects, never folded by the plain path
//	type Toast struct {
//	    mvi.Effect
//	    Text string
//	}
//
//	// Intention-carrying: the wrapped intention is dispatched again
//	func (o Forward) Intention() any { return o.Next }
//
// # Features
//
// Single-shot features produce exactly one outcome per intention; streaming
// features see every intention and emit as many outcomes as they like:
//
//	increase := mvi.Typed(func(ctx context.Context, _ Increase, _ mvi.Store) (CounterOutcome, error) {
//	    return Changed{Delta: 1}, nil
//	}, mvi.WithName("increase"))
//
//	ticker := mvi.Stream(func(ctx context.Context, in <-chan any, store mvi.Store, emit func(CounterOutcome)) error {
//	    for intention := range in {
//	        ...
//	    }
//	    return nil
//	})
//
// Streaming loops stop cooperatively on a stop intention read from the same
// channel. A feature can be pinned to a bounded Pool with WithPool.
//
// # Global Intentions
//
// Intentions embedding Global are broadcast through the RootStore to every
// registered container instead of the dispatching one:
//
//	type Reset struct{ mvi.Global }
//
// # Ordering
//
// Outcomes of one feature are reduced in the order they were emitted.
// Outcomes of different features interleave in no guaranteed order.
// Reductions of one container never run concurrently.
//
// # Failures
//
// Feature errors and panics become *FeatureError, reducer panics become
// *ReduceError. With PolicyIsolate (the default) the failing feature stops
// and the container keeps running; with PolicyPropagate the container closes
// and Err reports the cause:
//
//	store := mvi.NewStore(mvi.WithFailurePolicy(mvi.PolicyPropagate))
//
// # Extensions
//
// Extensions wrap dispatch, broadcast and reduce operations and observe the
// container lifecycle:
//
//	type AuditExtension struct {
//	    mvi.BaseExtension
//	}
//
//	func (e *AuditExtension) Wrap(ctx context.Context, next func() (any, error), op *mvi.Operation) (any, error) {
//	    log.Printf("%s %T", op.Kind, op.Intention)
//	    return next()
//	}
//
//	store := mvi.NewStore(
//	    mvi.WithExtension(&AuditExtension{BaseExtension: mvi.NewBaseExtension("audit")}),
//	)
//
// Extensions are executed in order of their Order() value (lower first).
// Hooks and features must not call Close on their own container, since Close
// waits for them to finish. CloseAsync starts the teardown and returns Done.
//
// # Resource Scopes
//
// Every feature owns a ResourceScope. Cleanups registered on it run in LIFO
// order when the feature closes:
//
//	conn, err := mvi.Acquire(f.Scope(), openConn, func(c *Conn) error {
//	    return c.Close()
//	})
package mvi
