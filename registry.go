package mvi

import "sync"

// registry is the typed kind -> container mapping shared by every container
// of a store. All mutations and snapshots are serialized.
type registry[K comparable, V comparable] struct {
	mu   sync.RWMutex
	data map[K]V
}

func newRegistry[K comparable, V comparable]() *registry[K, V] {
	return &registry[K, V]{
		data: make(map[K]V),
	}
}

func (r *registry[K, V]) Load(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	val, ok := r.data[key]
	return val, ok
}

// LoadOrStore stores value unless key is taken. It returns the value held
// after the call and whether it was already present.
func (r *registry[K, V]) LoadOrStore(key K, value V) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.data[key]; ok {
		return existing, true
	}
	r.data[key] = value
	return value, false
}

// CompareAndDelete removes key only while it still maps to value.
func (r *registry[K, V]) CompareAndDelete(key K, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.data[key]; ok && existing == value {
		delete(r.data, key)
		return true
	}
	return false
}

// Values returns a snapshot of the stored values.
func (r *registry[K, V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make([]V, 0, len(r.data))
	for _, v := range r.data {
		values = append(values, v)
	}
	return values
}
