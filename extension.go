package mvi

import "context"

// Extension provides hooks into the container lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a store
	Init(store *RootStore) error

	// Wrap intercepts operations (dispatch, broadcast, reduce)
	Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error)

	// OnFeatureError is called when a feature task fails
	OnFeatureError(container ContainerInfo, err *FeatureError)

	// OnReduceError is called when a reduction fails
	OnReduceError(container ContainerInfo, err *ReduceError)

	// OnCleanupError handles cleanup failures
	OnCleanupError(err *CleanupError)

	// OnStateChange is called after a reduction produced a different state
	OnStateChange(container ContainerInfo, prev, next any)

	// OnEffect is called for every effect outcome forwarded by a container
	OnEffect(container ContainerInfo, effect any)

	// Container lifecycle hooks
	OnContainerOpen(container ContainerInfo)
	OnContainerClose(container ContainerInfo, err error)

	// Dispose is called when the store is disposed
	Dispose(store *RootStore) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(store *RootStore) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() (any, error), op *Operation) (any, error) {
	return next()
}

func (e *BaseExtension) OnFeatureError(container ContainerInfo, err *FeatureError) {
}

func (e *BaseExtension) OnReduceError(container ContainerInfo, err *ReduceError) {
}

func (e *BaseExtension) OnCleanupError(err *CleanupError) {
}

func (e *BaseExtension) OnStateChange(container ContainerInfo, prev, next any) {
}

func (e *BaseExtension) OnEffect(container ContainerInfo, effect any) {
}

func (e *BaseExtension) OnContainerOpen(container ContainerInfo) {
}

func (e *BaseExtension) OnContainerClose(container ContainerInfo, err error) {
}

func (e *BaseExtension) Dispose(store *RootStore) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind      OperationKind
	Container ContainerInfo
	Intention any
	Outcome   any
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpDispatch indicates an intention dispatched into a container
	OpDispatch OperationKind = "dispatch"
	// OpBroadcast indicates a global intention broadcast by the store
	OpBroadcast OperationKind = "broadcast"
	// OpReduce indicates an outcome folded into state
	OpReduce OperationKind = "reduce"
)

// ContainerInfo identifies a container in hooks and snapshots.
type ContainerInfo struct {
	ID       string
	Name     string
	Kind     Kind
	Features []AnyFeature
}
