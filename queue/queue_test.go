package queue

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-bridge/errors"
)

func TestPushThenConsume_FIFO(t *testing.T) {
	var q Queue[int]
	q.Push(1)
	q.Push(2)
	q.Push(3)

	var got []int
	for i := 0; i < 3; i++ {
		if err := q.Consume(func(v int) { got = append(got, v) }); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}

	for i, want := range []int{1, 2, 3} {
		if got[i] != want {
			t.Errorf("consume order %v, want [1 2 3]", got)
			break
		}
	}
	if q.Len() != 0 {
		t.Errorf("queue still holds %d values", q.Len())
	}
}

func TestPushDeliversToPendingConsumer(t *testing.T) {
	var q Queue[string]

	var got string
	delivered := false
	if err := q.Consume(func(v string) { got = v; delivered = true }); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if delivered {
		t.Fatal("consumer fired before any push")
	}

	q.Push("hello")
	if !delivered || got != "hello" {
		t.Fatalf("pending consumer got %q (delivered=%v)", got, delivered)
	}

	// The registration is one-shot: the next push buffers.
	q.Push("world")
	if q.Len() != 1 {
		t.Errorf("second push should buffer, Len = %d", q.Len())
	}
}

func TestConsume_SynchronousWhenBuffered(t *testing.T) {
	var q Queue[int]
	q.Push(42)

	fired := false
	if err := q.Consume(func(v int) {
		if v != 42 {
			t.Errorf("got %d, want 42", v)
		}
		fired = true
	}); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !fired {
		t.Fatal("callback did not fire synchronously")
	}
}

func TestDoubleConsume_ReturnsError(t *testing.T) {
	var q Queue[int]

	if err := q.Consume(func(int) {}); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	err := q.Consume(func(int) { t.Error("second consumer must never fire") })
	if err == nil {
		t.Fatal("second consume succeeded, want double-wait error")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseQueue, Kind: errors.KindDoubleWait}) {
		t.Errorf("error = %v, want queue double_wait", err)
	}
}

func TestFirstConsumerSurvivesRejectedSecond(t *testing.T) {
	var q Queue[int]

	got := 0
	if err := q.Consume(func(v int) { got = v }); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := q.Consume(func(int) {}); err == nil {
		t.Fatal("second consume succeeded")
	}

	q.Push(9)
	if got != 9 {
		t.Errorf("first consumer got %d, want 9", got)
	}
}

func TestCancel_ClearsPendingConsumer(t *testing.T) {
	var q Queue[int]

	if err := q.Consume(func(int) { t.Error("cancelled consumer must never fire") }); err != nil {
		t.Fatalf("consume: %v", err)
	}
	q.Cancel()

	// With the registration gone, a push buffers instead of delivering.
	q.Push(5)
	if q.Len() != 1 {
		t.Errorf("push after cancel should buffer, Len = %d", q.Len())
	}

	got := 0
	if err := q.Consume(func(v int) { got = v }); err != nil {
		t.Fatalf("consume after cancel: %v", err)
	}
	if got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestDrain(t *testing.T) {
	var q Queue[int]
	q.Push(1)
	q.Push(2)

	vals := q.Drain()
	if len(vals) != 2 || vals[0] != 1 || vals[1] != 2 {
		t.Errorf("drain = %v, want [1 2]", vals)
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain = %d", q.Len())
	}
}
