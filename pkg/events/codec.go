package events

import (
	"bytes"
	"encoding/json"

	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/pkg/errors"
)

// ErrProtocolNoise marks a frame that could not be understood at all. Such
// frames are dropped and never fail a turn.
var ErrProtocolNoise = errors.New("protocol noise")

// Request is the single message sent per turn.
type Request struct {
	Prompt string     `json:"prompt"`
	Fields fields.Map `json:"fields"`
}

type wireMessage struct {
	Type  EventType       `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Decoder turns raw stream frames into typed events. Types that are neither a
// control type nor in Fields decode to EventUnknown.
type Decoder struct {
	Fields fields.Set
}

func NewDecoder(fs fields.Set) *Decoder {
	return &Decoder{Fields: fs}
}

func (d *Decoder) Decode(raw []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(ErrProtocolNoise, err.Error())
	}
	if msg.Type == "" {
		return nil, errors.Wrap(ErrProtocolNoise, "message without type")
	}

	switch msg.Type {
	case EventTypeThinking:
		text, err := decodeText(msg.Value)
		if err != nil {
			return nil, err
		}
		return &EventReasoning{Text: text}, nil
	case EventTypeInfo:
		text, err := decodeText(msg.Value)
		if err != nil {
			return nil, err
		}
		return &EventNarrative{Text: text}, nil
	case EventTypeEnd:
		return &EventEnd{}, nil
	}

	if d.Fields.Contains(string(msg.Type)) {
		v := fields.Null()
		if len(msg.Value) > 0 {
			if err := json.Unmarshal(msg.Value, &v); err != nil {
				return nil, errors.Wrapf(ErrProtocolNoise, "field %s: %v", msg.Type, err)
			}
		}
		return &EventPatch{Field: string(msg.Type), Value: v}, nil
	}

	return &EventUnknown{Type_: msg.Type, Value: msg.Value}, nil
}

// decodeText accepts strings, numbers and null. Anything else is noise.
func decodeText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.Wrap(ErrProtocolNoise, err.Error())
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.Wrapf(ErrProtocolNoise, "text value %s", raw)
	}
	return n.String(), nil
}

// Encode renders an event back into its wire form.
func Encode(e Event) ([]byte, error) {
	msg := wireMessage{Type: e.Type()}

	var err error
	switch ev := e.(type) {
	case *EventReasoning:
		msg.Value, err = json.Marshal(ev.Text)
	case *EventNarrative:
		msg.Value, err = json.Marshal(ev.Text)
	case *EventPatch:
		msg.Value, err = json.Marshal(ev.Value)
	case *EventEnd:
		msg.Value = json.RawMessage(`""`)
	case *EventUnknown:
		msg.Value = ev.Value
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(msg)
}
