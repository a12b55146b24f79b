// Package worker implements the dispatcher goroutine that owns the socket
// connection and the mutable session state of the bridge.
//
// The dispatcher is the single consumer of the host's request channel and of
// the socket adapter's event channel, and the single writer of the session.
// Requests are handled strictly in arrival order. While a blocking round
// trip is in flight, the next inbound socket response is diverted into the
// session's prologue rendezvous queue instead of being forwarded to the
// host; the BlockingPrologue and BlockingEpilogue requests then move it to
// the host through shared memory.
//
// Protocol misuse (a prologue or epilogue outside a blocking round trip, or
// a second prologue before the first epilogue completed) is a fatal error:
// Run returns it and the worker stops.
package worker
