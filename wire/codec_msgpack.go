package wire

import (
	"encoding/json"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackCodec encodes/decodes frames as MessagePack. The frame's JSON
// payload is transcoded through [Value] so it travels as native
// MessagePack structures rather than embedded JSON text.
type MsgpackCodec struct{}

// msgpackFrame mirrors Frame with the payload as a tagged-union Value.
type msgpackFrame struct {
	ID        string    `msgpack:"id"`
	Type      FrameType `msgpack:"type"`
	Method    string    `msgpack:"method,omitempty"`
	CorrelID  string    `msgpack:"correl_id,omitempty"`
	Token     string    `msgpack:"token,omitempty"`
	Data      *Value    `msgpack:"data,omitempty"`
	Error     *Error    `msgpack:"error,omitempty"`
	Timestamp time.Time `msgpack:"ts"`
}

func (c *MsgpackCodec) Encode(frame *Frame) ([]byte, error) {
	mf := msgpackFrame{
		ID:        frame.ID,
		Type:      frame.Type,
		Method:    frame.Method,
		CorrelID:  frame.CorrelID,
		Token:     frame.Token,
		Error:     frame.Error,
		Timestamp: frame.Timestamp,
	}
	if len(frame.Data) > 0 {
		var v Value
		if err := json.Unmarshal(frame.Data, &v); err != nil {
			return nil, err
		}
		mf.Data = &v
	}
	return msgpack.Marshal(&mf)
}

func (c *MsgpackCodec) Decode(data []byte) (*Frame, error) {
	var mf msgpackFrame
	if err := msgpack.Unmarshal(data, &mf); err != nil {
		return nil, err
	}

	f := &Frame{
		ID:        mf.ID,
		Type:      mf.Type,
		Method:    mf.Method,
		CorrelID:  mf.CorrelID,
		Token:     mf.Token,
		Error:     mf.Error,
		Timestamp: mf.Timestamp,
	}
	if mf.Data != nil {
		raw, err := json.Marshal(mf.Data)
		if err != nil {
			return nil, err
		}
		f.Data = raw
	}
	return f, nil
}

func (c *MsgpackCodec) Name() string { return CodecNameMsgpack }
