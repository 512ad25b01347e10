package mvi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Store is the lookup capability handed to features.
type Store interface {
	// ObserveStates returns the live state flow of kind, or a *LookupError
	// when no container is registered for it.
	ObserveStates(kind Kind) (Observable, error)
}

// registrant is the type-erased view of a container kept by the root store.
type registrant interface {
	Info() ContainerInfo
	Kind() Kind
	observable() Observable
	deliver(intention any)
	Close() error
}

// RootStore is the process-wide registry of live containers, keyed by state
// kind. It is constructed once and passed to every container; it does not own
// the containers, which register and unregister themselves.
type RootStore struct {
	mu         sync.RWMutex
	containers *registry[Kind, registrant]
	extensions []Extension
	tags       sync.Map
	logger     *slog.Logger
	policy     FailurePolicy
}

// StoreOption is a modifier for stores
type StoreOption func(*RootStore)

// WithStoreTag returns an option that sets a tag on a store
func WithStoreTag[T any](tag Tag[T], val T) StoreOption {
	return func(s *RootStore) {
		tag.Set(s, val)
	}
}

// WithExtension returns an option that registers an extension to a store
func WithExtension(ext Extension) StoreOption {
	return func(s *RootStore) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithLogger sets the logger used by the store and its containers.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *RootStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFailurePolicy sets how containers react to feature and reducer failures.
func WithFailurePolicy(policy FailurePolicy) StoreOption {
	return func(s *RootStore) {
		s.policy = policy
	}
}

// NewStore creates a new store with optional configuration
func NewStore(opts ...StoreOption) *RootStore {
	s := &RootStore{
		containers: newRegistry[Kind, registrant](),
		extensions: []Extension{},
		logger:     slog.Default(),
		policy:     PolicyIsolate,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// UseExtension registers an extension to the store
func (s *RootStore) UseExtension(ext Extension) error {
	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.mu.Unlock()

	return ext.Init(s)
}

// Logger returns the store logger.
func (s *RootStore) Logger() *slog.Logger {
	return s.logger
}

// Policy returns the failure policy containers of this store follow.
func (s *RootStore) Policy() FailurePolicy {
	return s.policy
}

// ObserveStates returns the live state flow registered for kind.
func (s *RootStore) ObserveStates(kind Kind) (Observable, error) {
	c, ok := s.containers.Load(kind)
	if !ok {
		return nil, &LookupError{Kind: kind}
	}
	return c.observable(), nil
}

// Dispatch broadcasts intention to every registered container. A failing
// container does not prevent delivery to the others.
func (s *RootStore) Dispatch(intention any) {
	op := &Operation{
		Kind:      OpBroadcast,
		Intention: intention,
	}

	_, err := s.wrap(context.Background(), op, func() (any, error) {
		for _, c := range s.containers.Values() {
			s.safeDeliver(c, intention)
		}
		return nil, nil
	})
	if err != nil {
		s.logger.Warn("broadcast interrupted",
			"intention", fmt.Sprintf("%T", intention),
			"error", err,
		)
	}
}

// Invoke is an alias for Dispatch
func (s *RootStore) Invoke(intention any) {
	s.Dispatch(intention)
}

// Containers returns a snapshot of the registered containers.
func (s *RootStore) Containers() []ContainerInfo {
	values := s.containers.Values()
	infos := make([]ContainerInfo, 0, len(values))
	for _, c := range values {
		infos = append(infos, c.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Kind.String() < infos[j].Kind.String()
	})
	return infos
}

// Dispose closes every registered container and disposes the extensions.
func (s *RootStore) Dispose() error {
	var errs []error
	for _, c := range s.containers.Values() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, ext := range s.snapshotExtensions() {
		if err := ext.Dispose(s); err != nil {
			errs = append(errs, fmt.Errorf("disposing extension %s: %w", ext.Name(), err))
		}
	}

	return errors.Join(errs...)
}

// GetTag retrieves a tag value from the store
func (s *RootStore) GetTag(tag any) (any, bool) {
	return s.tags.Load(tag)
}

// SetTag stores a tag value on the store
func (s *RootStore) SetTag(tag any, val any) {
	s.tags.Store(tag, val)
}

func (s *RootStore) register(c registrant) error {
	if existing, loaded := s.containers.LoadOrStore(c.Kind(), c); loaded {
		return fmt.Errorf("%w: %s is owned by container %s", ErrAlreadyRegistered, c.Kind(), existing.Info().ID)
	}
	return nil
}

func (s *RootStore) unregister(c registrant) bool {
	return s.containers.CompareAndDelete(c.Kind(), c)
}

func (s *RootStore) safeDeliver(c registrant, intention any) {
	defer func() {
		if r := recover(); r != nil {
			info := c.Info()
			s.logger.Error("intention delivery panicked",
				"container", info.Name,
				"kind", info.Kind.String(),
				"intention", fmt.Sprintf("%T", intention),
				"panic", r,
			)
		}
	}()
	c.deliver(intention)
}

func (s *RootStore) snapshotExtensions() []Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	return exts
}

// wrap chains the extensions around next (middleware pattern).
func (s *RootStore) wrap(ctx context.Context, op *Operation, next func() (any, error)) (any, error) {
	exts := s.snapshotExtensions()

	// Apply extensions in reverse order (last registered wraps first)
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() (any, error) {
			return ext.Wrap(ctx, currentNext, op)
		}
	}

	return next()
}

func (s *RootStore) each(fn func(Extension)) {
	for _, ext := range s.snapshotExtensions() {
		fn(ext)
	}
}
