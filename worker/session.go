package worker

import (
	"github.com/wippyai/wasm-bridge/protocol"
	"github.com/wippyai/wasm-bridge/queue"
	"github.com/wippyai/wasm-bridge/shm"
)

// transferPhase tracks the progress of the shared-memory transfer within a
// blocking round trip.
type transferPhase int

const (
	// phaseIdle: no transfer in flight.
	phaseIdle transferPhase = iota
	// phaseEpilogue: the prologue published a size and pushed the serialized
	// response; only a BlockingEpilogue is valid next.
	phaseEpilogue
)

// Session is the worker-owned mutable state. It is created once per
// dispatcher and only ever touched from the dispatcher goroutine; no locking
// is needed.
type Session struct {
	debug      bool
	isBlocking bool
	phase      transferPhase
	sock       Socket

	// waitingPrologue holds responses diverted during a blocking round trip
	// until the prologue consumes one.
	waitingPrologue queue.Queue[protocol.Response]

	// waitingEpilogue carries the serialized response from the prologue
	// phase to the epilogue phase.
	waitingEpilogue queue.Queue[string]

	// pendingSize is the size buffer of a prologue whose consumer is still
	// registered on waitingPrologue. Cleared when the consumer fires; checked
	// to detect registrations left behind by abandoned round trips.
	pendingSize *shm.SizeBuffer
}

func newSession() *Session {
	return &Session{}
}
