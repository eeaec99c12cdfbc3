package streaming

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrEmptyMessage is returned when decoding a zero-length frame or payload.
var ErrEmptyMessage = errors.New("empty message")

// Codec serializes envelopes for a transport.
type Codec interface {
	Encode(msgType string, payload any) ([]byte, error)
	Decode(data []byte) (Envelope, error)
	Unmarshal(raw []byte, v any) error
	Binary() bool
}

// MsgpackCodec is the default binary codec.
type MsgpackCodec struct{}

// JSONCodec is a text codec for debugging and browser clients.
// Payloads are carried as raw JSON bytes inside the envelope.
type JSONCodec struct{}

type jsonEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (MsgpackCodec) Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("encode: missing message type")
	}
	if payload == nil {
		return nil, fmt.Errorf("encode %s: nil payload", msgType)
	}
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return msgpack.Marshal(Envelope{Type: msgType, Payload: raw})
}

func (MsgpackCodec) Decode(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

func (MsgpackCodec) Unmarshal(raw []byte, v any) error {
	return msgpack.Unmarshal(raw, v)
}

func (MsgpackCodec) Binary() bool { return true }

func (JSONCodec) Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("encode: missing message type")
	}
	if payload == nil {
		return nil, fmt.Errorf("encode %s: nil payload", msgType)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msgType, err)
	}
	return json.Marshal(jsonEnvelope{Type: msgType, Payload: raw})
}

func (JSONCodec) Decode(data []byte) (Envelope, error) {
	if len(data) == 0 {
		return Envelope{}, ErrEmptyMessage
	}
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return Envelope{Type: env.Type, Payload: msgpack.RawMessage(env.Payload)}, nil
}

func (JSONCodec) Unmarshal(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}

func (JSONCodec) Binary() bool { return false }

// DecodePayload decodes the envelope payload into T.
func DecodePayload[T any](c Codec, env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, fmt.Errorf("%s: %w", env.Type, ErrEmptyMessage)
	}
	if err := c.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return out, nil
}

// NewCodec returns the codec registered under name ("msgpack" or "json").
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return MsgpackCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
