package mvi

import (
	"context"
	"errors"
	"sync"
)

type cleanupEntry struct {
	fn    func() error
	order int
}

// ResourceScope owns a cancellable context, the goroutines started under it
// and the cleanups registered on it. Every feature and every container holds
// one.
//
// Close cancels the context, waits for every task started with Go and then
// runs the cleanups in reverse registration order. It runs exactly once;
// later calls return the same result. Close must not be called from a task
// started by the same scope.
type ResourceScope struct {
	owner  string
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	wg       sync.WaitGroup
	cleanups []cleanupEntry
	closed   bool

	onCleanupError func(*CleanupError)

	closeOnce sync.Once
	closeErr  error
}

// NewResourceScope creates a scope whose context is derived from parent.
func NewResourceScope(parent context.Context, owner string) *ResourceScope {
	ctx, cancel := context.WithCancel(parent)
	return &ResourceScope{
		owner:  owner,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Owner returns the name the scope was created with.
func (s *ResourceScope) Owner() string {
	return s.owner
}

// Context is cancelled when the scope closes.
func (s *ResourceScope) Context() context.Context {
	return s.ctx
}

// Closed reports whether Close has started.
func (s *ResourceScope) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Go runs fn on a new goroutine tracked by the scope. It reports false, and
// does not run fn, once the scope is closed.
func (s *ResourceScope) Go(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

// OnCleanup registers fn to run when the scope closes. On an already closed
// scope fn runs immediately.
func (s *ResourceScope) OnCleanup(fn func() error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if err := fn(); err != nil {
			s.reportCleanup(err)
		}
		return
	}
	s.cleanups = append(s.cleanups, cleanupEntry{
		fn:    fn,
		order: len(s.cleanups),
	})
	s.mu.Unlock()
}

// Acquire opens a resource under the scope and registers its release.
func Acquire[T any](s *ResourceScope, open func(ctx context.Context) (T, error), release func(T) error) (T, error) {
	res, err := open(s.ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.OnCleanup(func() error {
		return release(res)
	})
	return res, nil
}

// Close releases everything the scope owns.
func (s *ResourceScope) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		entries := s.cleanups
		s.cleanups = nil
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()

		var errs []error
		for i := len(entries) - 1; i >= 0; i-- {
			if err := entries[i].fn(); err != nil {
				errs = append(errs, s.reportCleanup(err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

func (s *ResourceScope) reportCleanup(err error) *CleanupError {
	cleanupErr := &CleanupError{
		Owner: s.owner,
		Err:   err,
	}
	s.mu.Lock()
	hook := s.onCleanupError
	s.mu.Unlock()
	if hook != nil {
		hook(cleanupErr)
	}
	return cleanupErr
}

func (s *ResourceScope) setCleanupHook(hook func(*CleanupError)) {
	s.mu.Lock()
	s.onCleanupError = hook
	s.mu.Unlock()
}
