package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/BusBom/rpi-server/core/model"
)

// InstructionMessage is the payload published for every emission.
type InstructionMessage struct {
	MessageID string   `json:"message_id" msgpack:"message_id"`
	CycleID   string   `json:"cycle_id" msgpack:"cycle_id"`
	StationID string   `json:"station_id" msgpack:"station_id"`
	Platforms []string `json:"platforms" msgpack:"platforms"`
	Display   string   `json:"display" msgpack:"display"`
	Timestamp int64    `json:"timestamp" msgpack:"timestamp"`
}

// NewInstructionMessage wraps instructions with a message id. Display holds
// the rendered driver string.
func NewInstructionMessage(id string, in model.Instructions) InstructionMessage {
	return InstructionMessage{
		MessageID: id,
		CycleID:   in.CycleID,
		StationID: in.StationID,
		Platforms: append([]string(nil), in.Displays...),
		Display:   in.Render(),
		Timestamp: in.Timestamp.UnixMilli(),
	}
}

// Codec serializes instruction messages.
type Codec interface {
	Encode(InstructionMessage) ([]byte, error)
	Decode([]byte, *InstructionMessage) error
}

type jsonCodec struct{}

func (jsonCodec) Encode(m InstructionMessage) ([]byte, error) { return json.Marshal(m) }
func (jsonCodec) Decode(b []byte, m *InstructionMessage) error { return json.Unmarshal(b, m) }

type msgpackCodec struct{}

func (msgpackCodec) Encode(m InstructionMessage) ([]byte, error) { return msgpack.Marshal(m) }
func (msgpackCodec) Decode(b []byte, m *InstructionMessage) error {
	return msgpack.Unmarshal(b, m)
}

// NewCodec returns the codec for name. An empty name selects JSON.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "msgpack":
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("mqtt: unknown codec %q", name)
	}
}
