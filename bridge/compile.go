package bridge

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/host"
	"github.com/wippyai/wasm-bridge/protocol"
)

// InitTag is the application-level acknowledgement the compile peer sends
// once it has accepted and compiled the module.
const InitTag = "Init"

// Compile sends wasm to the configured compile peer and synchronously waits
// for its acknowledgement. The sequence is: configure the worker from the
// process-wide settings, await the socket-open acknowledgement, send the
// module bytes as a blocking binary request, then obtain the peer's reply
// through the shared-memory round trip. The wasm slice's storage is
// transferred to the worker, not copied.
func (b *Bridge) Compile(ctx context.Context, wasm []byte) (*Handle, error) {
	addr := wasmbridge.SocketAddress()
	if addr == "" {
		return nil, errors.New(errors.PhaseCompile, errors.KindInvalidData).
			Detail("socket address is not configured").
			Build()
	}

	start := time.Now()
	b.proxy.PostRequest(protocol.Configure{
		SocketAddress: addr,
		Debug:         wasmbridge.Debug(),
	}, false)

	if _, err := b.proxy.Receive(ctx, protocol.TagOnSocketOpen); err != nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindNotConnected).
			Detail("waiting for socket open").
			Cause(err).
			Build()
	}

	b.proxy.PostRequest(protocol.SocketRequest{
		Inner: protocol.BinaryRequest{Bytes: wasm},
	}, true)

	resp, err := b.proxy.BlockingReceive(ctx, protocol.TagSocketResponse)
	if err != nil {
		return nil, err
	}

	body, err := textBody(resp)
	if err != nil {
		return nil, err
	}
	tag, err := protocol.BodyTag(body)
	if err != nil {
		return nil, errors.InvalidData(errors.PhaseCompile, "reading acknowledgement tag", err)
	}
	if tag != InitTag {
		return nil, errors.TagMismatch(errors.PhaseCompile, InitTag, tag)
	}

	b.log.Debug("module compiled",
		zap.Int("bytes", len(wasm)),
		zap.Duration("elapsed", time.Since(start)))

	return &Handle{proxy: b.proxy, bridge: b}, nil
}

// textBody extracts the JSON body from a SocketResponse.
func textBody(resp protocol.Response) (json.RawMessage, error) {
	sr, ok := resp.(protocol.SocketResponse)
	if !ok {
		return nil, errors.TagMismatch(errors.PhaseCompile, protocol.TagSocketResponse, resp.ResponseType())
	}
	text, ok := sr.Inner.(protocol.TextResponse)
	if !ok {
		return nil, errors.New(errors.PhaseCompile, errors.KindUnhandledFrame).
			Detail("acknowledgement arrived as a binary frame").
			Build()
	}
	return text.Body, nil
}

// Handle is the opaque result of a successful compile. It wraps the worker
// proxy; the remote module and instance object model passes through it
// untouched.
type Handle struct {
	proxy  *host.Proxy
	bridge *Bridge
}

// PostRequest forwards a request to the worker that owns the compiled
// module's connection.
func (h *Handle) PostRequest(req protocol.Request, blocking bool) {
	h.proxy.PostRequest(req, blocking)
}

// Receive waits asynchronously for the next response with the given tag.
func (h *Handle) Receive(ctx context.Context, tag string) (protocol.Response, error) {
	return h.proxy.Receive(ctx, tag)
}

// BlockingReceive waits synchronously for the next response with the given
// tag via the shared-memory round trip.
func (h *Handle) BlockingReceive(ctx context.Context, tag string) (protocol.Response, error) {
	return h.proxy.BlockingReceive(ctx, tag)
}

// Close shuts down the bridge that produced this handle.
func (h *Handle) Close() error {
	return h.bridge.Close()
}
