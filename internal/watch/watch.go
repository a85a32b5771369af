// Package watch is a single-slot broadcast: one sender stores the latest value
// and any number of receivers observe it. Older values are overwritten, never
// queued.
package watch

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNoReceivers is returned by Send when nobody is subscribed. The value
	// is still stored.
	ErrNoReceivers = errors.New("watch: no receivers")
	// ErrClosed is returned by Changed once the sender is closed.
	ErrClosed = errors.New("watch: closed")
)

// Value holds the latest value of type T.
type Value[T any] struct {
	mu        sync.RWMutex
	val       T
	version   uint64
	notify    chan struct{}
	receivers int
	closed    bool
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		val:    initial,
		notify: make(chan struct{}),
	}
}

// Send replaces the stored value and wakes every receiver.
func (v *Value[T]) Send(val T) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.val = val
	v.version++
	close(v.notify)
	v.notify = make(chan struct{})
	receivers := v.receivers
	v.mu.Unlock()

	if receivers == 0 {
		return ErrNoReceivers
	}
	return nil
}

// Borrow returns the latest value.
func (v *Value[T]) Borrow() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val
}

// ReceiverCount returns the number of open receivers.
func (v *Value[T]) ReceiverCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.receivers
}

// Subscribe returns a receiver that considers the current value seen.
func (v *Value[T]) Subscribe() *Receiver[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.receivers++
	return &Receiver[T]{v: v, seen: v.version}
}

// Close wakes all receivers with ErrClosed. The last value stays readable.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	close(v.notify)
}

// Receiver observes a Value. A Receiver is not safe for concurrent use.
type Receiver[T any] struct {
	v    *Value[T]
	seen uint64
	once sync.Once
}

// Changed blocks until a value newer than the last seen one is sent, then
// marks it seen.
func (r *Receiver[T]) Changed(ctx context.Context) error {
	for {
		r.v.mu.RLock()
		version, notify, closed := r.v.version, r.v.notify, r.v.closed
		r.v.mu.RUnlock()

		if version != r.seen {
			r.seen = version
			return nil
		}
		if closed {
			return ErrClosed
		}

		select {
		case <-notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Borrow returns the latest value without marking it seen.
func (r *Receiver[T]) Borrow() T {
	return r.v.Borrow()
}

// BorrowAndUpdate returns the latest value and marks it seen.
func (r *Receiver[T]) BorrowAndUpdate() T {
	r.v.mu.RLock()
	defer r.v.mu.RUnlock()
	r.seen = r.v.version
	return r.v.val
}

// Close unsubscribes the receiver.
func (r *Receiver[T]) Close() {
	r.once.Do(func() {
		r.v.mu.Lock()
		r.v.receivers--
		r.v.mu.Unlock()
	})
}
