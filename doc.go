// Package wasmbridge provides a synchronous bridge to a remote WebAssembly
// compile service reached over a websocket.
//
// A caller obtains a compile result synchronously even though the work
// happens in a separate worker goroutine that owns the socket connection and
// can only be reached through asynchronous message passing. Ordinary
// responses flow back over a channel; the one truly blocking round trip
// returns through shared memory instead, using a two-phase size/payload
// handshake polled by the caller.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmbridge/          Root package with process-wide settings
//	├── bridge/          High-level API: Compile and the module handle
//	├── host/            Host-side proxy: async receive and blocking receive
//	├── worker/          Worker dispatcher owning session state and the socket
//	├── socket/          Websocket adapter decoding frames into typed responses
//	├── protocol/        Tagged request/response variants and the wire format
//	├── shm/             Two-phase shared-memory transfer with atomic flags
//	├── queue/           Single-slot rendezvous queue
//	├── server/          Reference compile peer backed by wazero
//	└── errors/          Structured error types
//
// # Quick Start
//
// Point the bridge at a compile peer and compile a module:
//
//	wasmbridge.SetSocketAddress("ws://localhost:8787/compile")
//	wasmbridge.SetBlockingTimeout(5 * time.Second)
//
//	handle, err := bridge.Compile(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer handle.Close()
//
// # Concurrency Model
//
// The host and worker are two independent event-driven goroutines connected
// by channels. Shared memory with atomic flags is used only for the blocking
// return leg. At most one blocking round trip may be outstanding at a time;
// a second concurrent blocking call fails with a double-wait error rather
// than queueing.
package wasmbridge
