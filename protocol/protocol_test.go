package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestTextRequestFrame_RoundTrip(t *testing.T) {
	body := json.RawMessage(`{"type":"Ping","seq":7}`)

	data, err := MarshalTextRequest(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"type":"TextRequest"`) {
		t.Errorf("frame missing discriminator: %s", data)
	}

	req, err := UnmarshalTextRequest(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bytes.Equal(req.Body, body) {
		t.Errorf("body = %s, want %s", req.Body, body)
	}
}

func TestTextResponseFrame_RoundTrip(t *testing.T) {
	body := json.RawMessage(`{"type":"Init"}`)

	data, err := MarshalTextResponse(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := UnmarshalTextResponse(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bytes.Equal(resp.Body, body) {
		t.Errorf("body = %s, want %s", resp.Body, body)
	}
}

func TestUnmarshalTextResponse_RejectsWrongFrameType(t *testing.T) {
	data, err := MarshalTextRequest(json.RawMessage(`{"type":"Ping"}`))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := UnmarshalTextResponse(data); err == nil {
		t.Fatal("decoded a request frame as a response")
	}
}

func TestMarshalResponse_OnSocketOpen(t *testing.T) {
	data, err := MarshalResponse(OnSocketOpen{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	r, err := UnmarshalResponse(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ResponseType() != TagOnSocketOpen {
		t.Errorf("type = %s, want OnSocketOpen", r.ResponseType())
	}
}

func TestMarshalResponse_SocketResponseText(t *testing.T) {
	orig := SocketResponse{Inner: TextResponse{Body: json.RawMessage(`{"type":"Init"}`)}}

	data, err := MarshalResponse(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	r, err := UnmarshalResponse(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	sr, ok := r.(SocketResponse)
	if !ok {
		t.Fatalf("decoded %T, want SocketResponse", r)
	}
	text, ok := sr.Inner.(TextResponse)
	if !ok {
		t.Fatalf("inner %T, want TextResponse", sr.Inner)
	}

	tag, err := BodyTag(text.Body)
	if err != nil {
		t.Fatalf("body tag: %v", err)
	}
	if tag != "Init" {
		t.Errorf("body tag = %q, want Init", tag)
	}
}

func TestMarshalResponse_SocketResponseBinary(t *testing.T) {
	orig := SocketResponse{Inner: BinaryResponse{Bytes: []byte{0x00, 0x61, 0x73, 0x6d}}}

	data, err := MarshalResponse(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	r, err := UnmarshalResponse(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	sr, ok := r.(SocketResponse)
	if !ok {
		t.Fatalf("decoded %T, want SocketResponse", r)
	}
	bin, ok := sr.Inner.(BinaryResponse)
	if !ok {
		t.Fatalf("inner %T, want BinaryResponse", sr.Inner)
	}
	if !bytes.Equal(bin.Bytes, []byte{0x00, 0x61, 0x73, 0x6d}) {
		t.Errorf("bytes = %x", bin.Bytes)
	}
}

func TestUnmarshalResponse_UnknownType(t *testing.T) {
	if _, err := UnmarshalResponse([]byte(`{"type":"Bogus"}`)); err == nil {
		t.Fatal("decoded unknown response type")
	}
}

func TestRequestTags(t *testing.T) {
	reqs := []Request{
		Configure{SocketAddress: "ws://localhost:1", Debug: true},
		BlockingPrologue{},
		BlockingEpilogue{},
		SocketRequest{Inner: TextRequest{Body: json.RawMessage(`{}`)}},
	}
	want := []string{TagConfigure, TagBlockingPrologue, TagBlockingEpilogue, TagSocketRequest}
	for i, r := range reqs {
		if r.RequestType() != want[i] {
			t.Errorf("tag = %q, want %q", r.RequestType(), want[i])
		}
	}
}
