// Package server implements the reference compile peer the bridge connects
// to. It accepts websocket connections, compiles binary frames as
// WebAssembly modules with wazero, and answers with the Init
// acknowledgement the compile entry point validates.
//
// Server implements http.Handler and can be mounted on any HTTP server. It
// is used by "bridge serve" and by the end-to-end tests.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/protocol"
)

// maxFrameBytes mirrors the client side read limit so large modules fit in
// one frame.
const maxFrameBytes = 64 << 20

// Server is a websocket compile peer backed by a shared wazero runtime.
type Server struct {
	runtime wazero.Runtime
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a compile peer. Close releases its wazero runtime.
func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		runtime: wazero.NewRuntime(ctx),
		log:     log.With(zap.String("component", "server")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close stops all connections and releases the wazero runtime.
func (s *Server) Close(ctx context.Context) error {
	s.cancel()
	return s.runtime.Close(ctx)
}

// ServeHTTP implements http.Handler. Each request is expected to be a
// websocket upgrade; frames are answered one at a time in arrival order.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer func() {
		_ = c.Close(websocket.StatusNormalClosure, "")
	}()
	c.SetReadLimit(maxFrameBytes)

	ctx := s.ctx
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return
		}

		var body json.RawMessage
		switch typ {
		case websocket.MessageText:
			body = s.handleText(data)
		case websocket.MessageBinary:
			body = s.handleCompile(ctx, data)
		default:
			continue
		}

		reply, err := protocol.MarshalTextResponse(body)
		if err != nil {
			s.log.Error("encoding reply", zap.Error(err))
			continue
		}
		if err := c.Write(ctx, websocket.MessageText, reply); err != nil {
			return
		}
	}
}

// handleCompile validates the module bytes with wazero and produces the
// acknowledgement body. The compiled module is closed right away; the
// bridge only needs the acknowledgement, the module object model passes
// through untouched.
func (s *Server) handleCompile(ctx context.Context, wasm []byte) json.RawMessage {
	mod, err := s.runtime.CompileModule(ctx, wasm)
	if err != nil {
		s.log.Warn("module rejected", zap.Int("bytes", len(wasm)), zap.Error(err))
		return errorBody(err.Error())
	}
	_ = mod.Close(ctx)

	s.log.Info("module compiled", zap.Int("bytes", len(wasm)))
	return json.RawMessage(`{"type":"Init"}`)
}

// handleText answers application-level text requests. Ping gets Pong;
// anything else is reported back as an error body.
func (s *Server) handleText(data []byte) json.RawMessage {
	req, err := protocol.UnmarshalTextRequest(data)
	if err != nil {
		s.log.Warn("malformed request frame", zap.Error(err))
		return errorBody("malformed request frame")
	}

	tag, err := protocol.BodyTag(req.Body)
	if err != nil {
		return errorBody("missing body tag")
	}
	switch tag {
	case "Ping":
		return json.RawMessage(`{"type":"Pong"}`)
	default:
		s.log.Warn("unknown request body", zap.String("tag", tag))
		return errorBody("unknown request: " + tag)
	}
}

func errorBody(msg string) json.RawMessage {
	body, err := json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{Type: "Error", Message: msg})
	if err != nil {
		return json.RawMessage(`{"type":"Error"}`)
	}
	return body
}
