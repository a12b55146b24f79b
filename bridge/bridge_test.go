package bridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	wasmbridge "github.com/wippyai/wasm-bridge"
	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/protocol"
	"github.com/wippyai/wasm-bridge/server"
)

// emptyModule is the smallest valid WebAssembly module: magic and version.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// configure points the process-wide settings at url and restores defaults
// when the test finishes.
func configure(t *testing.T, url string, timeout time.Duration) {
	t.Helper()
	wasmbridge.SetSocketAddress("ws" + strings.TrimPrefix(url, "http"))
	wasmbridge.SetBlockingTimeout(timeout)
	t.Cleanup(func() {
		wasmbridge.SetSocketAddress("")
		wasmbridge.SetBlockingTimeout(wasmbridge.DefaultBlockingTimeout)
	})
}

func startCompilePeer(t *testing.T) *httptest.Server {
	t.Helper()
	s := server.New(nil)
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		srv.Close()
		s.Close(context.Background())
	})
	return srv
}

func TestCompile_EndToEnd(t *testing.T) {
	srv := startCompilePeer(t)
	configure(t, srv.URL, 5*time.Second)

	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	handle, err := b.Compile(ctx, emptyModule)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if handle == nil {
		t.Fatal("compile returned nil handle")
	}
}

func TestCompile_RejectedModule(t *testing.T) {
	srv := startCompilePeer(t)
	configure(t, srv.URL, 5*time.Second)

	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The peer answers with an Error body; the ack validation reports the
	// unexpected tag.
	_, err := b.Compile(ctx, []byte("definitely not wasm"))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCompile, Kind: errors.KindTagMismatch}) {
		t.Errorf("error = %v, want compile tag_mismatch", err)
	}
}

func TestCompile_UnconfiguredAddress(t *testing.T) {
	wasmbridge.SetSocketAddress("")

	b := New(nil)
	defer b.Close()

	_, err := b.Compile(context.Background(), emptyModule)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCompile, Kind: errors.KindInvalidData}) {
		t.Errorf("error = %v, want compile invalid_data", err)
	}
}

func TestCompile_PeerNeverReplies_TimesOut(t *testing.T) {
	// A peer that accepts the connection but never answers the module: the
	// blocking round trip must surface a timeout, not decoded garbage.
	silent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		for {
			if _, _, err := c.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	defer silent.Close()
	configure(t, silent.URL, 100*time.Millisecond)

	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := b.Compile(ctx, emptyModule)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseTransfer, Kind: errors.KindTimeout}) {
		t.Errorf("error = %v, want transfer timeout", err)
	}
}

func TestHandle_PingAfterCompile(t *testing.T) {
	srv := startCompilePeer(t)
	configure(t, srv.URL, 5*time.Second)

	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	handle, err := b.Compile(ctx, emptyModule)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	// The handle keeps the non-blocking path usable after the round trip.
	handle.PostRequest(protocol.SocketRequest{
		Inner: protocol.TextRequest{Body: json.RawMessage(`{"type":"Ping"}`)},
	}, false)

	resp, err := handle.Receive(ctx, protocol.TagSocketResponse)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	text := resp.(protocol.SocketResponse).Inner.(protocol.TextResponse)
	if tag, _ := protocol.BodyTag(text.Body); tag != "Pong" {
		t.Errorf("reply tag = %q, want Pong", tag)
	}
}
