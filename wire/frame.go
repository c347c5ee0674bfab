package wire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the message envelope for the WebSocket transport. Every
// message exchanged over a socket connection is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Method names the operation for request frames (e.g., "job.ack").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries auth credentials (typically only on the auth frame).
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Data carries the method-specific payload as JSON. Codecs may
	// transcode it into their native representation on the wire.
	Data json.RawMessage `json:"data,omitempty" msgpack:"-"`

	// Error carries error details for error frames.
	Error *Error `json:"error,omitempty" msgpack:"error,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ── Well-known methods ──────────────────────────────

const (
	// Auth method.
	MethodAuth = "auth"

	// Worker methods.
	MethodClaim     = "worker.claim"
	MethodHeartbeat = "worker.heartbeat"

	// Job methods.
	MethodAck     = "job.ack"
	MethodFail    = "job.fail"
	MethodEnqueue = "job.enqueue"

	// Checkpoint methods (durable jobs).
	MethodCheckpointGet    = "checkpoint.get"
	MethodCheckpointSave   = "checkpoint.save"
	MethodCheckpointDelete = "checkpoint.delete"

	// Admin methods.
	MethodQueueEnsure    = "queue.ensure"
	MethodScheduleUpsert = "schedule.upsert"
	MethodScheduleDelete = "schedule.delete"
)

// NewRequestFrame creates a new request frame.
func NewRequestFrame(frameID, method string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        frameID,
		Type:      FrameRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, werr *Error) *Frame {
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameErr,
		CorrelID:  correlID,
		Error:     werr,
		Timestamp: time.Now().UTC(),
	}
}

// GenerateFrameID returns a new unique frame ID.
func GenerateFrameID() string {
	return uuid.NewString()
}
