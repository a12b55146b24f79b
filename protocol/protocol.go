// Package protocol defines the tagged request and response variants
// exchanged between the host proxy and the worker dispatcher, and the JSON
// wire format used on the socket.
//
// Requests travel host to worker inside an Envelope carrying the sender's
// blocking flag. Responses travel worker to host either as plain values on
// the asynchronous channel or, for the blocking return leg, serialized to
// JSON with a "type" discriminator and moved through shared memory.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/wippyai/wasm-bridge/shm"
)

// Request tags.
const (
	TagConfigure        = "Configure"
	TagBlockingPrologue = "BlockingPrologue"
	TagBlockingEpilogue = "BlockingEpilogue"
	TagSocketRequest    = "SocketRequest"
)

// Response tags.
const (
	TagOnSocketOpen   = "OnSocketOpen"
	TagSocketResponse = "SocketResponse"
)

// Wire frame discriminators.
const (
	wireTextRequest  = "TextRequest"
	wireTextResponse = "TextResponse"
	innerText        = "TextResponse"
	innerBinary      = "BinaryResponse"
)

// Request is implemented by all host-to-worker request variants.
type Request interface {
	// RequestType returns the variant tag (e.g. "Configure").
	RequestType() string
}

// Envelope wraps a request with the sender's blocking flag. Every request
// carries the flag; the dispatcher latches it before branching so the next
// inbound socket response knows whether it is part of a blocking round trip.
type Envelope struct {
	Request  Request
	Blocking bool
}

// Configure tells the worker to open the socket connection and set the
// session's debug flag.
type Configure struct {
	SocketAddress string
	Debug         bool
}

func (Configure) RequestType() string { return TagConfigure }

// BlockingPrologue asks the worker to announce the size of the diverted
// response through the shared size buffer.
type BlockingPrologue struct {
	Size *shm.SizeBuffer
}

func (BlockingPrologue) RequestType() string { return TagBlockingPrologue }

// BlockingEpilogue asks the worker to write the serialized response into the
// shared payload buffer allocated from the announced size.
type BlockingEpilogue struct {
	Payload *shm.PayloadBuffer
}

func (BlockingEpilogue) RequestType() string { return TagBlockingEpilogue }

// SocketRequest forwards a request body to the socket peer.
type SocketRequest struct {
	Inner SocketRequestBody
}

func (SocketRequest) RequestType() string { return TagSocketRequest }

// SocketRequestBody is the outbound body variant of a SocketRequest.
type SocketRequestBody interface {
	isSocketRequestBody()
}

// TextRequest is a JSON request body sent as a text frame.
type TextRequest struct {
	Body json.RawMessage
}

func (TextRequest) isSocketRequestBody() {}

// BinaryRequest is a raw byte payload sent as a binary frame. The byte
// slice's storage is transferred to the socket adapter, not copied.
type BinaryRequest struct {
	Bytes []byte
}

func (BinaryRequest) isSocketRequestBody() {}

// Response is implemented by all worker-to-host response variants.
type Response interface {
	// ResponseType returns the variant tag (e.g. "SocketResponse").
	ResponseType() string
}

// OnSocketOpen reports that the socket connection was established.
type OnSocketOpen struct{}

func (OnSocketOpen) ResponseType() string { return TagOnSocketOpen }

// SocketResponse wraps a decoded inbound socket frame.
type SocketResponse struct {
	Inner SocketResponseBody
}

func (SocketResponse) ResponseType() string { return TagSocketResponse }

// SocketResponseBody is the inbound body variant of a SocketResponse.
type SocketResponseBody interface {
	isSocketResponseBody()
}

// TextResponse is a JSON response body received as a text frame. Body is the
// raw JSON document; it carries its own application-level "type" tag.
type TextResponse struct {
	Body json.RawMessage
}

func (TextResponse) isSocketResponseBody() {}

// BinaryResponse is a raw byte payload received as a binary frame.
type BinaryResponse struct {
	Bytes []byte
}

func (BinaryResponse) isSocketResponseBody() {}

// BodyTag extracts the application-level "type" tag from a text body.
func BodyTag(body json.RawMessage) (string, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decoding body tag: %w", err)
	}
	return env.Type, nil
}
