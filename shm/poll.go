package shm

import (
	"context"
	"runtime"
	"time"
)

// Outcome is the result of waiting on a buffer's publication flag.
type Outcome int

const (
	// Signalled means the writer published and the buffer contents are valid.
	Signalled Outcome = iota
	// TimedOut means the deadline elapsed before the flag was published. The
	// buffer was marked abandoned; its contents must not be read.
	TimedOut
	// Cancelled means the context was cancelled before the flag was
	// published. The buffer was marked abandoned.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Signalled:
		return "signalled"
	case TimedOut:
		return "timed-out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// spinThreshold is the number of Gosched-only iterations before the poll
// loop starts sleeping between checks.
const spinThreshold = 64

// Wait polls the publication flag until it is published, the timeout
// elapses, or ctx is cancelled. The deadline is computed once from the
// monotonic clock.
//
// On expiry or cancellation the waiter CASes the flag to abandoned. If the
// writer published in the meantime the CAS fails and the wait still counts
// as Signalled, so a value is never both delivered and reported lost.
func (s *signal) Wait(ctx context.Context, timeout time.Duration) Outcome {
	deadline := time.Now().Add(timeout)

	for i := 0; ; i++ {
		switch s.flag.Load() {
		case flagReady:
			return Signalled
		case flagAbandoned:
			// A previous wait on this buffer already gave up.
			return TimedOut
		}

		select {
		case <-ctx.Done():
			if s.flag.CompareAndSwap(flagEmpty, flagAbandoned) {
				return Cancelled
			}
			continue // writer won the race; observe ready on the next spin
		default:
		}

		if !time.Now().Before(deadline) {
			if s.flag.CompareAndSwap(flagEmpty, flagAbandoned) {
				return TimedOut
			}
			continue
		}

		if i < spinThreshold {
			runtime.Gosched()
		} else {
			time.Sleep(50 * time.Microsecond)
		}
	}
}
