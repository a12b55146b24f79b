package worker

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/protocol"
	"github.com/wippyai/wasm-bridge/shm"
	"github.com/wippyai/wasm-bridge/socket"
)

// Socket is the connection surface the dispatcher drives. *socket.Adapter
// implements it; tests substitute a fake.
type Socket interface {
	Events() <-chan protocol.SocketResponse
	SendText(ctx context.Context, body json.RawMessage) error
	SendBinary(ctx context.Context, payload []byte) error
	Close() error
}

// DialFunc opens a socket connection. The default dials a websocket.
type DialFunc func(ctx context.Context, addr string, log *zap.Logger) (Socket, error)

func defaultDial(ctx context.Context, addr string, log *zap.Logger) (Socket, error) {
	return socket.Dial(ctx, addr, log)
}

// Config holds configuration for a Dispatcher.
type Config struct {
	// Requests is the host-to-worker request channel.
	Requests <-chan protocol.Envelope

	// Responses is the worker-to-host asynchronous response channel.
	Responses chan<- protocol.Response

	// Dial opens the socket connection. If nil, a websocket is dialed.
	Dial DialFunc

	// Logger is the structured logger to use. If nil, a no-op logger is used.
	Logger *zap.Logger
}

// Dispatcher consumes inbound requests in arrival order and mutates the
// session accordingly. It is also the sole consumer of the socket adapter's
// events.
type Dispatcher struct {
	requests  <-chan protocol.Envelope
	responses chan<- protocol.Response
	dial      DialFunc
	dials     chan dialResult
	session   *Session
	log       *zap.Logger
}

type dialResult struct {
	sock Socket
	err  error
}

// New creates a dispatcher. Call Run on its own goroutine to start it.
func New(cfg Config) *Dispatcher {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	dial := cfg.Dial
	if dial == nil {
		dial = defaultDial
	}
	return &Dispatcher{
		requests:  cfg.Requests,
		responses: cfg.Responses,
		dial:      dial,
		dials:     make(chan dialResult, 1),
		session:   newSession(),
		log:       log.With(zap.String("component", "worker")),
	}
}

// Run processes requests, dial results, and socket events until ctx is
// cancelled, the request channel closes, or a fatal protocol misuse occurs.
// The session lives exactly as long as Run.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer func() {
		if d.session.sock != nil {
			_ = d.session.sock.Close()
		}
	}()

	for {
		// The events channel only exists once Configure connected the socket;
		// a nil channel blocks forever in select, which is what we want.
		var events <-chan protocol.SocketResponse
		if d.session.sock != nil {
			events = d.session.sock.Events()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-d.requests:
			if !ok {
				return nil
			}
			if err := d.handle(ctx, env); err != nil {
				d.log.Error("fatal dispatch error", zap.Error(err))
				return err
			}

		case res := <-d.dials:
			d.handleDial(ctx, res)

		case ev, ok := <-events:
			if !ok {
				d.log.Debug("socket event stream ended")
				d.session.sock = nil
				continue
			}
			d.handleSocketResponse(ctx, ev)
		}
	}
}

// handle latches the blocking flag and branches on the request variant.
// It returns an error only for fatal protocol misuse; everything else is
// local to one message and logged.
func (d *Dispatcher) handle(ctx context.Context, env protocol.Envelope) error {
	// The latch decides whether the next inbound socket response is diverted
	// for blocking pickup or forwarded immediately.
	d.session.isBlocking = env.Blocking

	switch req := env.Request.(type) {
	case protocol.Configure:
		d.handleConfigure(ctx, req)
		return nil
	case protocol.BlockingPrologue:
		return d.handlePrologue(req)
	case protocol.BlockingEpilogue:
		return d.handleEpilogue(ctx, req)
	case protocol.SocketRequest:
		d.handleSocketRequest(ctx, req)
		return nil
	default:
		return errors.Misuse(errors.PhaseDispatch, "unknown request variant %T", env.Request)
	}
}

// handleConfigure stores the debug flag and dials asynchronously so the
// dispatcher stays responsive. The dial result comes back through d.dials.
func (d *Dispatcher) handleConfigure(ctx context.Context, req protocol.Configure) {
	d.session.debug = req.Debug
	if d.session.debug {
		d.log.Debug("configuring session", zap.String("addr", req.SocketAddress))
	}

	go func() {
		sock, err := d.dial(ctx, req.SocketAddress, d.log)
		select {
		case d.dials <- dialResult{sock: sock, err: err}:
		case <-ctx.Done():
			if sock != nil {
				_ = sock.Close()
			}
		}
	}()
}

func (d *Dispatcher) handleDial(ctx context.Context, res dialResult) {
	if res.err != nil {
		d.log.Error("socket dial failed", zap.Error(res.err))
		return
	}
	if d.session.sock != nil {
		// Reconfigure replaces the connection.
		_ = d.session.sock.Close()
	}
	d.session.sock = res.sock
	d.emit(ctx, protocol.OnSocketOpen{})
}

// handleSocketResponse routes an inbound response: diverted to the prologue
// queue while a blocking round trip is outstanding, forwarded in arrival
// order otherwise.
func (d *Dispatcher) handleSocketResponse(ctx context.Context, ev protocol.SocketResponse) {
	if d.session.isBlocking {
		d.dropStaleRegistration()
		d.session.waitingPrologue.Push(ev)
		return
	}
	d.emit(ctx, ev)
}

// dropStaleRegistration clears a prologue consumer left behind by a round
// trip the host abandoned, so the next diverted response is not burned on
// its dead buffer.
func (d *Dispatcher) dropStaleRegistration() {
	if d.session.pendingSize != nil && d.session.pendingSize.Abandoned() {
		d.session.waitingPrologue.Cancel()
		d.session.pendingSize = nil
		d.log.Warn("dropping prologue consumer for an abandoned round trip")
	}
}

// handlePrologue consumes the next diverted response, serializes it, and
// publishes its UTF-16 length through the shared size buffer. The serialized
// JSON is parked on waitingEpilogue for the epilogue phase.
func (d *Dispatcher) handlePrologue(req protocol.BlockingPrologue) error {
	if !d.session.isBlocking {
		return errors.Misuse(errors.PhaseDispatch, "BlockingPrologue outside a blocking round trip")
	}
	if d.session.phase != phaseIdle {
		return errors.Misuse(errors.PhaseDispatch, "BlockingPrologue while a previous transfer is still in flight")
	}
	d.dropStaleRegistration()

	d.session.pendingSize = req.Size
	err := d.session.waitingPrologue.Consume(func(resp protocol.Response) {
		d.session.pendingSize = nil
		data, merr := protocol.MarshalResponse(resp)
		if merr != nil {
			// Leave the size buffer unpublished; the host's poll will time
			// out and surface the failure on its side.
			d.log.Error("serializing diverted response", zap.Error(merr))
			return
		}
		js := string(data)

		if !req.Size.Publish(shm.UTF16Length(js)) {
			d.log.Warn("size handshake abandoned by host, discarding round trip")
			d.session.phase = phaseIdle
			return
		}
		d.session.waitingEpilogue.Push(js)
		d.session.phase = phaseEpilogue
	})
	if err != nil {
		return errors.New(errors.PhaseDispatch, errors.KindProtocolMisuse).
			Detail("second BlockingPrologue before the first completed").
			Cause(err).
			Build()
	}
	return nil
}

// handleEpilogue writes the parked JSON string into the shared payload
// buffer as UTF-16 code units and publishes the flag. Any extra responses
// diverted during the round trip are forwarded afterwards.
func (d *Dispatcher) handleEpilogue(ctx context.Context, req protocol.BlockingEpilogue) error {
	if !d.session.isBlocking {
		return errors.Misuse(errors.PhaseDispatch, "BlockingEpilogue outside a blocking round trip")
	}
	if d.session.phase != phaseEpilogue {
		return errors.Misuse(errors.PhaseDispatch, "BlockingEpilogue without a completed prologue")
	}

	err := d.session.waitingEpilogue.Consume(func(js string) {
		if !req.Payload.Publish(shm.EncodeUTF16(js)) {
			d.log.Warn("payload transfer abandoned by host")
		}
		d.session.phase = phaseIdle
	})
	if err != nil {
		return errors.New(errors.PhaseDispatch, errors.KindProtocolMisuse).
			Detail("BlockingEpilogue with no parked payload").
			Cause(err).
			Build()
	}

	// Exactly one diverted response is expected per round trip; anything
	// else that arrived during the window goes back on the async channel.
	for _, resp := range d.session.waitingPrologue.Drain() {
		d.emit(ctx, resp)
	}
	return nil
}

// handleSocketRequest forwards a request body to the socket peer: text
// bodies as JSON frames, binary bodies as raw frames with their storage
// moved, not copied.
func (d *Dispatcher) handleSocketRequest(ctx context.Context, req protocol.SocketRequest) {
	if d.session.sock == nil {
		d.log.Warn("dropping socket request, not connected",
			zap.Error(errors.NotConnected(errors.PhaseDispatch)))
		return
	}

	var err error
	switch inner := req.Inner.(type) {
	case protocol.TextRequest:
		err = d.session.sock.SendText(ctx, inner.Body)
	case protocol.BinaryRequest:
		err = d.session.sock.SendBinary(ctx, inner.Bytes)
	default:
		d.log.Warn("dropping socket request with unknown body", zap.String("type", req.RequestType()))
		return
	}
	if err != nil {
		d.log.Warn("socket send failed", zap.Error(err))
	}
}

// emit forwards a response to the host over the asynchronous channel.
func (d *Dispatcher) emit(ctx context.Context, resp protocol.Response) {
	select {
	case d.responses <- resp:
	case <-ctx.Done():
	}
}
