package socket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/wippyai/wasm-bridge/protocol"
)

// closeNotifyListener signals done when the listener is closed, which is
// how httptest.Server.Close announces shutdown. Websocket handlers hijack
// their connections, so httptest no longer tracks or closes them; the
// signal lets echoPeer close its hijacked connections itself.
type closeNotifyListener struct {
	net.Listener
	once sync.Once
	done chan struct{}
}

func (l *closeNotifyListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return l.Listener.Close()
}

// echoPeer accepts one websocket connection and answers every text request
// with a TextResponse carrying the same body, and every binary frame with
// the same bytes echoed back as a binary frame. Closing the server closes
// the websocket connection too, so peer shutdown reaches the client.
func echoPeer(t *testing.T) *httptest.Server {
	t.Helper()
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		go func() {
			<-done
			c.Close(websocket.StatusGoingAway, "server shutting down")
		}()

		ctx := r.Context()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			switch typ {
			case websocket.MessageText:
				req, err := protocol.UnmarshalTextRequest(data)
				if err != nil {
					continue
				}
				reply, err := protocol.MarshalTextResponse(req.Body)
				if err != nil {
					continue
				}
				if err := c.Write(ctx, websocket.MessageText, reply); err != nil {
					return
				}
			case websocket.MessageBinary:
				if err := c.Write(ctx, websocket.MessageBinary, data); err != nil {
					return
				}
			}
		}
	}))
	srv.Listener = &closeNotifyListener{Listener: srv.Listener, done: done}
	return srv
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestDial_Failure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := Dial(ctx, "ws://127.0.0.1:1", nil); err == nil {
		t.Fatal("dial to closed port succeeded")
	}
}

func TestSendText_ReceivesDecodedResponse(t *testing.T) {
	srv := echoPeer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer a.Close()

	body := json.RawMessage(`{"type":"Ping"}`)
	if err := a.SendText(ctx, body); err != nil {
		t.Fatalf("send text: %v", err)
	}

	select {
	case ev := <-a.Events():
		text, ok := ev.Inner.(protocol.TextResponse)
		if !ok {
			t.Fatalf("event inner %T, want TextResponse", ev.Inner)
		}
		tag, err := protocol.BodyTag(text.Body)
		if err != nil || tag != "Ping" {
			t.Errorf("body tag = %q (%v), want Ping", tag, err)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for echoed response")
	}
}

func TestSendBinary_ReceivesBinaryResponse(t *testing.T) {
	srv := echoPeer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer a.Close()

	payload := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if err := a.SendBinary(ctx, payload); err != nil {
		t.Fatalf("send binary: %v", err)
	}

	select {
	case ev := <-a.Events():
		bin, ok := ev.Inner.(protocol.BinaryResponse)
		if !ok {
			t.Fatalf("event inner %T, want BinaryResponse", ev.Inner)
		}
		if len(bin.Bytes) != len(payload) {
			t.Errorf("echoed %d bytes, want %d", len(bin.Bytes), len(payload))
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for echoed binary frame")
	}
}

func TestEventsChannel_ClosesOnPeerClose(t *testing.T) {
	srv := echoPeer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := Dial(ctx, wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	srv.Close()

	select {
	case _, ok := <-a.Events():
		if ok {
			t.Error("expected closed events channel, got an event")
		}
	case <-ctx.Done():
		t.Fatal("events channel did not close after peer shutdown")
	}
}
