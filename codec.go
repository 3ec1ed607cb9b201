package main

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec selects how server messages are framed for one connection
type Codec int

const (
	CodecJSON Codec = iota
	CodecMsgpack
)

func (c Codec) String() string {
	switch c {
	case CodecJSON:
		return "json"
	case CodecMsgpack:
		return "msgpack"
	}
	return fmt.Sprintf("codec(%d)", int(c))
}

// ParseCodec maps the ?codec= query value to a Codec. Empty means JSON.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "json":
		return CodecJSON, nil
	case "msgpack":
		return CodecMsgpack, nil
	}
	return CodecJSON, fmt.Errorf("unknown codec %q", s)
}

// Frame is an encoded message ready for the write pump
type Frame struct {
	Data   []byte
	Binary bool
}

// binaryEnvelope carries the payload inline instead of as a nested JSON string.
type binaryEnvelope struct {
	MessageType string `msgpack:"message_type"`
	PlayerID    int    `msgpack:"player_id"`
	Message     any    `msgpack:"message"`
}

// Encode frames msg for this codec.
func (c Codec) Encode(msg Outbound) (Frame, error) {
	switch c {
	case CodecMsgpack:
		env := binaryEnvelope{MessageType: msg.Type, PlayerID: msg.PlayerID, Message: msg.Payload}
		if msg.Payload == nil {
			env.Message = ""
		}
		data, err := msgpack.Marshal(&env)
		if err != nil {
			return Frame{}, fmt.Errorf("msgpack encode %s: %w", msg.Type, err)
		}
		return Frame{Data: data, Binary: true}, nil
	default:
		env := Envelope{MessageType: msg.Type, PlayerID: msg.PlayerID}
		if msg.Payload != nil {
			inner, err := json.Marshal(msg.Payload)
			if err != nil {
				return Frame{}, fmt.Errorf("json encode %s payload: %w", msg.Type, err)
			}
			env.Message = string(inner)
		}
		data, err := json.Marshal(env)
		if err != nil {
			return Frame{}, fmt.Errorf("json encode %s: %w", msg.Type, err)
		}
		return Frame{Data: data}, nil
	}
}

// frameCache encodes one Outbound at most once per codec during a broadcast.
type frameCache struct {
	msg    Outbound
	frames map[Codec]Frame
}

func newFrameCache(msg Outbound) *frameCache {
	return &frameCache{msg: msg, frames: make(map[Codec]Frame, 2)}
}

func (fc *frameCache) get(c Codec) (Frame, error) {
	if f, ok := fc.frames[c]; ok {
		return f, nil
	}
	f, err := c.Encode(fc.msg)
	if err != nil {
		return Frame{}, err
	}
	fc.frames[c] = f
	return f, nil
}
