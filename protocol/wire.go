package protocol

import (
	"encoding/json"
	"fmt"
)

// frame is the JSON document exchanged on the socket: one frame, one
// complete document, with a "type" discriminator.
type frame struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// MarshalTextRequest encodes a text request body as an outbound wire frame.
func MarshalTextRequest(body json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(frame{Type: wireTextRequest, Body: body})
	if err != nil {
		return nil, fmt.Errorf("marshaling text request frame: %w", err)
	}
	return data, nil
}

// UnmarshalTextRequest decodes an inbound wire frame on the server side.
func UnmarshalTextRequest(data []byte) (TextRequest, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return TextRequest{}, fmt.Errorf("decoding request frame: %w", err)
	}
	if f.Type != wireTextRequest {
		return TextRequest{}, fmt.Errorf("unexpected request frame type %q", f.Type)
	}
	return TextRequest{Body: f.Body}, nil
}

// MarshalTextResponse encodes a text response body as a wire frame, as sent
// by the socket peer.
func MarshalTextResponse(body json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(frame{Type: wireTextResponse, Body: body})
	if err != nil {
		return nil, fmt.Errorf("marshaling text response frame: %w", err)
	}
	return data, nil
}

// UnmarshalTextResponse decodes an inbound text frame into a TextResponse.
func UnmarshalTextResponse(data []byte) (TextResponse, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return TextResponse{}, fmt.Errorf("decoding response frame: %w", err)
	}
	if f.Type != wireTextResponse {
		return TextResponse{}, fmt.Errorf("unexpected response frame type %q", f.Type)
	}
	return TextResponse{Body: f.Body}, nil
}

// wireResponse is the serialized form of a Response used by the blocking
// shared-memory transfer.
type wireResponse struct {
	Type  string            `json:"type"`
	Inner *wireResponseBody `json:"inner,omitempty"`
}

type wireResponseBody struct {
	Type  string          `json:"type"`
	Body  json.RawMessage `json:"body,omitempty"`
	Bytes []byte          `json:"bytes,omitempty"`
}

// MarshalResponse serializes a response, injecting "type" discriminators for
// the outer variant and the nested socket body.
func MarshalResponse(r Response) ([]byte, error) {
	w := wireResponse{Type: r.ResponseType()}

	if sr, ok := r.(SocketResponse); ok {
		switch inner := sr.Inner.(type) {
		case TextResponse:
			w.Inner = &wireResponseBody{Type: innerText, Body: inner.Body}
		case BinaryResponse:
			w.Inner = &wireResponseBody{Type: innerBinary, Bytes: inner.Bytes}
		default:
			return nil, fmt.Errorf("unknown socket response body %T", sr.Inner)
		}
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s response: %w", w.Type, err)
	}
	return data, nil
}

// UnmarshalResponse deserializes a response, using the "type" discriminators
// to select the concrete variants.
func UnmarshalResponse(data []byte) (Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}

	switch w.Type {
	case TagOnSocketOpen:
		return OnSocketOpen{}, nil
	case TagSocketResponse:
		if w.Inner == nil {
			return nil, fmt.Errorf("socket response without inner body")
		}
		switch w.Inner.Type {
		case innerText:
			return SocketResponse{Inner: TextResponse{Body: w.Inner.Body}}, nil
		case innerBinary:
			return SocketResponse{Inner: BinaryResponse{Bytes: w.Inner.Bytes}}, nil
		default:
			return nil, fmt.Errorf("unknown socket response body type %q", w.Inner.Type)
		}
	default:
		return nil, fmt.Errorf("unknown response type: %q", w.Type)
	}
}
