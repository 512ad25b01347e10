// Package stream provides the channel primitives the MVI runtime is built on:
// an unbounded FIFO mailbox and a broadcast hub whose subscribers each own a
// mailbox.
//
// Neither primitive ever blocks the producer. Ordering is FIFO per mailbox,
// and a hub publishes to all of its subscribers under a single lock, so every
// subscriber observes the same total order of values.
package stream

import "sync"

// Mailbox is an unbounded FIFO queue exposed as a receive-only channel.
type Mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool

	notify    chan struct{}
	out       chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewMailbox creates a mailbox and starts its delivery goroutine.
func NewMailbox[T any]() *Mailbox[T] {
	m := &Mailbox[T]{
		queue:  make([]T, 0, 8),
		notify: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
	}
	go m.pump()
	return m
}

// Push appends a value. It never blocks and reports false once the mailbox
// is closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Out returns the delivery channel. It is closed after Close.
func (m *Mailbox[T]) Out() <-chan T {
	return m.out
}

// Len returns the number of values waiting for delivery.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops delivery. Values still queued are dropped.
func (m *Mailbox[T]) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.queue = nil
		m.mu.Unlock()
		close(m.done)
	})
}

// Done is closed when the mailbox is closed.
func (m *Mailbox[T]) Done() <-chan struct{} {
	return m.done
}

func (m *Mailbox[T]) pump() {
	defer close(m.out)

	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.notify:
				continue
			case <-m.done:
				return
			}
		}

		v := m.queue[0]
		var zero T
		m.queue[0] = zero
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- v:
		case <-m.done:
			return
		}
	}
}
