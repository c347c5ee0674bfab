package wire

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNewRequestFrame(t *testing.T) {
	t.Parallel()

	data := map[string]string{"type": "email.send"}
	frame, err := NewRequestFrame("frame-1", MethodEnqueue, data)
	if err != nil {
		t.Fatalf("NewRequestFrame: %v", err)
	}

	if frame.ID != "frame-1" {
		t.Errorf("ID = %q, want %q", frame.ID, "frame-1")
	}
	if frame.Type != FrameRequest {
		t.Errorf("Type = %q, want %q", frame.Type, FrameRequest)
	}
	if frame.Method != MethodEnqueue {
		t.Errorf("Method = %q, want %q", frame.Method, MethodEnqueue)
	}
	if frame.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}

	var payload map[string]string
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload["type"] != "email.send" {
		t.Errorf("payload type = %q, want %q", payload["type"], "email.send")
	}
}

func TestNewResponseFrame(t *testing.T) {
	t.Parallel()

	frame, err := NewResponseFrame("correl-1", map[string]bool{"acknowledged": true})
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}

	if frame.Type != FrameResponse {
		t.Errorf("Type = %q, want %q", frame.Type, FrameResponse)
	}
	if frame.CorrelID != "correl-1" {
		t.Errorf("CorrelID = %q, want %q", frame.CorrelID, "correl-1")
	}
	if frame.ID == "" {
		t.Error("ID should be auto-generated")
	}
}

func TestNewErrorFrame(t *testing.T) {
	t.Parallel()

	frame := NewErrorFrame("correl-2", NewError(CodeNotFound, "job not found", false))
	if frame.Type != FrameErr {
		t.Errorf("Type = %q, want %q", frame.Type, FrameErr)
	}
	if frame.CorrelID != "correl-2" {
		t.Errorf("CorrelID = %q, want %q", frame.CorrelID, "correl-2")
	}
	if frame.Error == nil {
		t.Fatal("Error should not be nil")
	}
	if frame.Error.Code != CodeNotFound {
		t.Errorf("Error.Code = %q, want %q", frame.Error.Code, CodeNotFound)
	}
	if frame.Error.Message != "job not found" {
		t.Errorf("Error.Message = %q, want %q", frame.Error.Message, "job not found")
	}
}

func TestGenerateFrameID(t *testing.T) {
	t.Parallel()

	id1 := GenerateFrameID()
	if id1 == "" {
		t.Error("GenerateFrameID returned empty string")
	}
	if id2 := GenerateFrameID(); id1 == id2 {
		t.Error("two calls to GenerateFrameID should produce different IDs")
	}
}

func TestCodecJSONRoundtrip(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{}
	if codec.Name() != CodecNameJSON {
		t.Errorf("Name = %q, want %q", codec.Name(), CodecNameJSON)
	}

	original := &Frame{
		ID:        "test-1",
		Type:      FrameRequest,
		Method:    MethodClaim,
		Token:     "secret",
		Data:      json.RawMessage(`{"queues":["default"],"count":5}`),
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}

	data, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.Type != original.Type {
		t.Errorf("Type = %q, want %q", decoded.Type, original.Type)
	}
	if decoded.Method != original.Method {
		t.Errorf("Method = %q, want %q", decoded.Method, original.Method)
	}
	if decoded.Token != original.Token {
		t.Errorf("Token = %q, want %q", decoded.Token, original.Token)
	}
}

func TestCodecMsgpackRoundtrip(t *testing.T) {
	t.Parallel()

	codec := &MsgpackCodec{}
	if codec.Name() != CodecNameMsgpack {
		t.Errorf("Name = %q, want %q", codec.Name(), CodecNameMsgpack)
	}

	original := &Frame{
		ID:        "test-2",
		Type:      FrameResponse,
		CorrelID:  "correl-1",
		Data:      json.RawMessage(`{"acknowledged":true,"attempt":3}`),
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}

	data, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.Type != original.Type {
		t.Errorf("Type = %q, want %q", decoded.Type, original.Type)
	}
	if decoded.CorrelID != original.CorrelID {
		t.Errorf("CorrelID = %q, want %q", decoded.CorrelID, original.CorrelID)
	}

	// The payload crosses the codec as native MessagePack structures;
	// semantics must survive even though the byte form changes.
	var payload struct {
		Acknowledged bool `json:"acknowledged"`
		Attempt      int  `json:"attempt"`
	}
	if err := json.Unmarshal(decoded.Data, &payload); err != nil {
		t.Fatalf("unmarshal transcoded data: %v", err)
	}
	if !payload.Acknowledged || payload.Attempt != 3 {
		t.Errorf("transcoded payload = %+v", payload)
	}
}

func TestCodecErrorFrame(t *testing.T) {
	t.Parallel()

	codecs := []Codec{&JSONCodec{}, &MsgpackCodec{}}

	for _, codec := range codecs {
		t.Run(codec.Name(), func(t *testing.T) {
			original := &Frame{
				ID:       "err-1",
				Type:     FrameErr,
				CorrelID: "req-1",
				Error: &Error{
					Code:      CodeHandlerError,
					Message:   "boom",
					Retryable: true,
				},
				Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			}

			data, err := codec.Encode(original)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			decoded, err := codec.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if decoded.Error == nil {
				t.Fatal("Error should not be nil")
			}
			if decoded.Error.Code != CodeHandlerError {
				t.Errorf("Error.Code = %q, want %q", decoded.Error.Code, CodeHandlerError)
			}
			if decoded.Error.Message != "boom" {
				t.Errorf("Error.Message = %q, want %q", decoded.Error.Message, "boom")
			}
			if !decoded.Error.Retryable {
				t.Error("Error.Retryable should survive the round trip")
			}
		})
	}
}

func TestGetCodec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expected string
	}{
		{"json", CodecNameJSON},
		{"msgpack", CodecNameMsgpack},
		{"", CodecNameJSON},
		{"unknown", CodecNameJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := GetCodec(tt.name)
			if codec.Name() != tt.expected {
				t.Errorf("GetCodec(%q).Name() = %q, want %q", tt.name, codec.Name(), tt.expected)
			}
		})
	}
}
