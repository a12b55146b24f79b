// Package host implements the proxy the public API holds: the host-context
// end of the bridge. It multiplexes inbound worker responses between an
// internal FIFO buffer and whichever wait (asynchronous or blocking) is
// currently active, and it drives the shared-memory two-phase exchange for
// the blocking path.
package host

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/protocol"
	"github.com/wippyai/wasm-bridge/shm"
)

// TimeoutFunc returns the blocking timeout to use for a round trip. It is
// read at call time so process-wide settings changes take effect
// immediately.
type TimeoutFunc func() time.Duration

// Config holds configuration for a Proxy.
type Config struct {
	// Requests is the host-to-worker request channel.
	Requests chan<- protocol.Envelope

	// Responses is the worker-to-host asynchronous response channel.
	Responses <-chan protocol.Response

	// BlockingTimeout returns the deadline for each shared-memory poll.
	// If nil, the process-wide default applies.
	BlockingTimeout TimeoutFunc

	// Logger is the structured logger to use. If nil, a no-op logger is used.
	Logger *zap.Logger
}

// Proxy is the host-side endpoint of the bridge. Safe for concurrent use,
// except that only one Receive and one BlockingReceive may be outstanding
// at a time; violations are reported as double-wait errors.
type Proxy struct {
	requests chan<- protocol.Envelope
	timeout  TimeoutFunc
	log      *zap.Logger

	mu       sync.Mutex
	buffered []protocol.Response

	// pending is the delivery channel of the single outstanding Receive.
	// Capacity one: the inbound loop's send never blocks.
	pending chan protocol.Response

	// blocking guards the single outstanding blocking round trip.
	blocking atomic.Bool

	done chan struct{}
}

// New creates a proxy and starts its inbound handler goroutine, which runs
// until the worker's response channel closes.
func New(cfg Config) *Proxy {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.BlockingTimeout
	if timeout == nil {
		timeout = func() time.Duration { return wasmbridge.DefaultBlockingTimeout }
	}

	p := &Proxy{
		requests: cfg.Requests,
		timeout:  timeout,
		log:      log.With(zap.String("component", "host")),
		done:     make(chan struct{}),
	}
	go p.inboundLoop(cfg.Responses)
	return p
}

// Done is closed once the worker's response channel has closed.
func (p *Proxy) Done() <-chan struct{} {
	return p.done
}

// PostRequest forwards a request to the worker, attaching the blocking
// flag. Binary payloads travel by reference; their storage is transferred,
// not copied.
func (p *Proxy) PostRequest(req protocol.Request, blocking bool) {
	p.requests <- protocol.Envelope{Request: req, Blocking: blocking}
}

// Receive waits for the next response whose tag equals tag. A response
// already buffered resolves immediately. A response with a different tag
// fails the wait. Only one Receive may be pending at a time.
func (p *Proxy) Receive(ctx context.Context, tag string) (protocol.Response, error) {
	p.mu.Lock()
	if len(p.buffered) > 0 {
		resp := p.buffered[0]
		p.buffered = p.buffered[1:]
		p.mu.Unlock()
		return matchTag(resp, tag)
	}
	if p.pending != nil {
		p.mu.Unlock()
		return nil, errors.DoubleWait(errors.PhaseReceive, "a receive is already pending")
	}
	w := make(chan protocol.Response, 1)
	p.pending = w
	p.mu.Unlock()

	select {
	case resp := <-w:
		return matchTag(resp, tag)
	case <-ctx.Done():
		p.mu.Lock()
		if p.pending == w {
			p.pending = nil
			p.mu.Unlock()
			return nil, errors.Cancelled(errors.PhaseReceive, ctx.Err())
		}
		p.mu.Unlock()
		// The inbound loop already claimed this wait; its delivery is in
		// flight. Take it and re-buffer so the response is not lost.
		resp := <-w
		p.mu.Lock()
		p.buffered = append(p.buffered, resp)
		p.mu.Unlock()
		return nil, errors.Cancelled(errors.PhaseReceive, ctx.Err())
	}
}

// BlockingReceive waits synchronously for the next response whose tag
// equals tag. A buffered response resolves immediately; otherwise the full
// two-phase shared-memory exchange runs: the size handshake, then the
// payload transfer, each bounded by the configured blocking timeout. The
// asynchronous channel is not involved on the return leg.
func (p *Proxy) BlockingReceive(ctx context.Context, tag string) (protocol.Response, error) {
	p.mu.Lock()
	if len(p.buffered) > 0 {
		resp := p.buffered[0]
		p.buffered = p.buffered[1:]
		p.mu.Unlock()
		return matchTag(resp, tag)
	}
	p.mu.Unlock()

	if !p.blocking.CompareAndSwap(false, true) {
		return nil, errors.DoubleWait(errors.PhaseReceive, "a blocking round trip is already outstanding")
	}
	defer p.blocking.Store(false)

	timeout := p.timeout()

	// Prologue: learn the payload size.
	size := shm.NewSizeBuffer()
	p.PostRequest(protocol.BlockingPrologue{Size: size}, true)
	switch out := size.Wait(ctx, timeout); out {
	case shm.Signalled:
	case shm.Cancelled:
		return nil, errors.Cancelled(errors.PhaseTransfer, ctx.Err())
	default:
		return nil, errors.Timeout(errors.PhaseTransfer, "size handshake")
	}

	// Epilogue: transfer exactly that many UTF-16 code units.
	payload := shm.NewPayloadBuffer(size.Length())
	p.PostRequest(protocol.BlockingEpilogue{Payload: payload}, true)
	switch out := payload.Wait(ctx, timeout); out {
	case shm.Signalled:
	case shm.Cancelled:
		return nil, errors.Cancelled(errors.PhaseTransfer, ctx.Err())
	default:
		return nil, errors.Timeout(errors.PhaseTransfer, "payload transfer")
	}

	resp, err := protocol.UnmarshalResponse([]byte(payload.String()))
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseTransfer, "decoding transferred response", err)
	}
	p.log.Debug("blocking round trip complete",
		zap.String("tag", resp.ResponseType()),
		zap.Uint32("units", size.Length()))
	return matchTag(resp, tag)
}

// inboundLoop delivers every arriving response to the pending wait if one
// exists, otherwise appends it to the tail of the buffer. Tag matching
// happens on the receiving side.
func (p *Proxy) inboundLoop(responses <-chan protocol.Response) {
	defer close(p.done)

	for resp := range responses {
		p.mu.Lock()
		if w := p.pending; w != nil {
			p.pending = nil
			p.mu.Unlock()
			w <- resp
			continue
		}
		p.buffered = append(p.buffered, resp)
		p.mu.Unlock()
	}
}

// matchTag resolves a wait against a response: a matching tag returns the
// response, a different tag fails the wait. The response is consumed either
// way; the call does not retry.
func matchTag(resp protocol.Response, tag string) (protocol.Response, error) {
	if got := resp.ResponseType(); got != tag {
		return nil, errors.TagMismatch(errors.PhaseReceive, tag, got)
	}
	return resp, nil
}
