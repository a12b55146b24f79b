// Package queue implements the single-slot rendezvous queue used to hand
// values between a callback-style producer and a callback-style consumer.
//
// A Queue is either empty, holds buffered values, or holds exactly one
// pending consumer callback - never both at once. Push delivers directly to a
// pending consumer when one is registered; otherwise values are buffered in
// FIFO order for a later Consume.
//
// Queue is not safe for concurrent use. Both sides of the rendezvous run on
// the worker dispatcher goroutine, which is the queue's single owner.
package queue

import (
	"github.com/wippyai/wasm-bridge/errors"
)

// Queue is a single-producer/single-consumer rendezvous cell.
// The zero value is ready to use.
type Queue[T any] struct {
	buffered []T
	pending  func(T)
}

// Push hands a value to the queue. If a consumer callback is pending it is
// invoked immediately with v and the registration is cleared; otherwise v is
// appended to the FIFO buffer.
func (q *Queue[T]) Push(v T) {
	if q.pending != nil {
		fn := q.pending
		q.pending = nil
		fn(v)
		return
	}
	q.buffered = append(q.buffered, v)
}

// Consume requests the next value. If a value is buffered, the oldest one is
// popped and fn is invoked synchronously before Consume returns. Otherwise fn
// is registered as the pending consumer and invoked by the next Push.
//
// Only one consumer may be outstanding at a time. Registering a second
// consumer while one is pending returns a double-wait error and leaves the
// existing registration in place.
func (q *Queue[T]) Consume(fn func(T)) error {
	if len(q.buffered) > 0 {
		v := q.buffered[0]
		q.buffered = q.buffered[1:]
		fn(v)
		return nil
	}
	if q.pending != nil {
		return errors.DoubleWait(errors.PhaseQueue, "a consumer is already registered")
	}
	q.pending = fn
	return nil
}

// Cancel clears the pending consumer registration, if any. Buffered values
// are unaffected. A cancelled consumer is never invoked.
func (q *Queue[T]) Cancel() {
	q.pending = nil
}

// Len returns the number of buffered values.
func (q *Queue[T]) Len() int {
	return len(q.buffered)
}

// Drain removes and returns all buffered values in FIFO order.
func (q *Queue[T]) Drain() []T {
	out := q.buffered
	q.buffered = nil
	return out
}
