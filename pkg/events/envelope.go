package events

import (
	"encoding/json"
)

// Envelope is what the event tap publishes for every decoded frame: the wire
// message plus the turn it belongs to and its arrival sequence number.
type Envelope struct {
	TurnID string          `json:"turn_id" yaml:"turn_id"`
	Seq    uint64          `json:"seq" yaml:"seq"`
	Kind   string          `json:"kind" yaml:"kind"`
	Type   EventType       `json:"type" yaml:"type"`
	Value  json.RawMessage `json:"value,omitempty" yaml:"-"`
}

func NewEnvelope(turnID string, seq uint64, e Event) (Envelope, error) {
	b, err := Encode(e)
	if err != nil {
		return Envelope{}, err
	}
	var msg wireMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return Envelope{}, err
	}
	return Envelope{
		TurnID: turnID,
		Seq:    seq,
		Kind:   e.Kind().String(),
		Type:   msg.Type,
		Value:  msg.Value,
	}, nil
}
