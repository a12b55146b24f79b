// Package socket wraps the outbound websocket connection to the compile
// peer. It decodes inbound frames into typed socket responses and surfaces
// them on an events channel consumed by the worker dispatcher.
//
// Reconnection and retry are deliberately not handled here; a lost
// connection simply ends the event stream.
package socket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/protocol"
)

const (
	// defaultDialTimeout bounds each dial attempt.
	defaultDialTimeout = 10 * time.Second

	// maxFrameBytes raises the read limit above the websocket library's
	// default so module binaries and large JSON documents fit in one frame.
	maxFrameBytes = 64 << 20
)

// Adapter is a connected socket. Events are delivered in arrival order on
// the channel returned by Events; the channel closes when the connection is
// lost or the adapter is closed.
type Adapter struct {
	conn   *websocket.Conn
	events chan protocol.SocketResponse
	log    *zap.Logger
}

// Dial opens a websocket connection to addr. The returned adapter starts
// its read loop immediately; ctx governs both the dial and the read loop.
func Dial(ctx context.Context, addr string, log *zap.Logger) (*Adapter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "socket"))

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, addr, nil)
	if err != nil {
		return nil, errors.New(errors.PhaseSocket, errors.KindNotConnected).
			Detail("dialing %s", addr).
			Cause(err).
			Build()
	}
	conn.SetReadLimit(maxFrameBytes)

	a := &Adapter{
		conn:   conn,
		events: make(chan protocol.SocketResponse, 16),
		log:    log,
	}
	go a.readLoop(ctx)

	log.Debug("socket connected", zap.String("addr", addr))
	return a, nil
}

// Events returns the channel of decoded inbound responses.
func (a *Adapter) Events() <-chan protocol.SocketResponse {
	return a.events
}

// SendText wraps body in a text request frame and writes it as one complete
// JSON document.
func (a *Adapter) SendText(ctx context.Context, body json.RawMessage) error {
	data, err := protocol.MarshalTextRequest(body)
	if err != nil {
		return errors.InvalidData(errors.PhaseSocket, "encoding text request", err)
	}
	if err := a.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return errors.New(errors.PhaseSocket, errors.KindClosed).
			Detail("writing text frame").
			Cause(err).
			Build()
	}
	a.log.Debug("sent text frame", zap.Int("bytes", len(data)))
	return nil
}

// SendBinary writes payload as a binary frame. The slice's storage belongs
// to the adapter from this point; callers must not reuse it.
func (a *Adapter) SendBinary(ctx context.Context, payload []byte) error {
	if err := a.conn.Write(ctx, websocket.MessageBinary, payload); err != nil {
		return errors.New(errors.PhaseSocket, errors.KindClosed).
			Detail("writing binary frame").
			Cause(err).
			Build()
	}
	a.log.Debug("sent binary frame", zap.Int("bytes", len(payload)))
	return nil
}

// Close closes the connection. The events channel closes once the read loop
// observes the closure.
func (a *Adapter) Close() error {
	return a.conn.Close(websocket.StatusNormalClosure, "closing")
}

// readLoop reads frames until the connection closes or ctx is cancelled.
// Text frames are decoded through the wire codec; binary frames pass through
// as BinaryResponse. Malformed text frames are logged and skipped.
func (a *Adapter) readLoop(ctx context.Context) {
	defer close(a.events)

	for {
		typ, data, err := a.conn.Read(ctx)
		if err != nil {
			a.log.Debug("socket read loop ended", zap.Error(err))
			return
		}

		var ev protocol.SocketResponse
		switch typ {
		case websocket.MessageText:
			text, err := protocol.UnmarshalTextResponse(data)
			if err != nil {
				a.log.Warn("ignoring malformed text frame", zap.Error(err))
				continue
			}
			ev = protocol.SocketResponse{Inner: text}
		case websocket.MessageBinary:
			ev = protocol.SocketResponse{Inner: protocol.BinaryResponse{Bytes: data}}
		default:
			a.log.Warn("ignoring frame with unknown message type", zap.Int("type", int(typ)))
			continue
		}

		select {
		case a.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
