// Package bridge is the high-level API of the wasm bridge. It wires the
// host proxy to the worker dispatcher and exposes the synchronous-style
// Compile entry point.
package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/host"
	"github.com/wippyai/wasm-bridge/protocol"
	"github.com/wippyai/wasm-bridge/worker"
)

// Bridge owns one worker goroutine and the host proxy talking to it.
type Bridge struct {
	proxy  *host.Proxy
	cancel context.CancelFunc
	log    *zap.Logger

	closeOnce sync.Once
	runErr    chan error
}

// New creates a bridge and starts its worker goroutine. The worker runs
// until Close is called or a fatal protocol misuse stops it.
func New(log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}

	requests := make(chan protocol.Envelope, 16)
	responses := make(chan protocol.Response, 16)

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		cancel: cancel,
		log:    log,
		runErr: make(chan error, 1),
	}

	d := worker.New(worker.Config{
		Requests:  requests,
		Responses: responses,
		Logger:    log,
	})
	go func() {
		// The dispatcher is the only sender on the response channel, so it
		// is safe to close once Run returns; the proxy's Done fires then.
		defer close(responses)
		b.runErr <- d.Run(ctx)
	}()

	b.proxy = host.New(host.Config{
		Requests:        requests,
		Responses:       responses,
		BlockingTimeout: wasmbridge.BlockingTimeout,
		Logger:          log,
	})
	return b
}

// Proxy returns the host-side proxy for callers that need raw request and
// receive access beyond Compile.
func (b *Bridge) Proxy() *host.Proxy {
	return b.proxy
}

// Close stops the worker goroutine. It returns the worker's exit error, if
// any, once the worker has stopped.
func (b *Bridge) Close() error {
	b.closeOnce.Do(b.cancel)
	select {
	case err := <-b.runErr:
		if err != nil && err != context.Canceled {
			return err
		}
	case <-b.proxy.Done():
	}
	return nil
}

// Default bridge used by the package-level Compile.
var (
	defaultOnce   sync.Once
	defaultBridge *Bridge
)

// Compile compiles wasm through the process-wide default bridge, creating
// it on first use.
func Compile(ctx context.Context, wasm []byte) (*Handle, error) {
	defaultOnce.Do(func() {
		defaultBridge = New(nil)
	})
	return defaultBridge.Compile(ctx, wasm)
}
