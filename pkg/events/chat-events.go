package events

import (
	"encoding/json"

	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/rs/zerolog"
)

// EventType is the raw "type" tag of a stream message. Field patches use the
// field name as their type.
type EventType string

const (
	EventTypeThinking EventType = "thinking"
	EventTypeInfo     EventType = "info"
	EventTypeEnd      EventType = "end"
)

// Kind is the decoded class of a stream event.
type Kind int

const (
	KindUnknown Kind = iota
	KindReasoning
	KindNarrative
	KindPatch
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindReasoning:
		return "reasoning"
	case KindNarrative:
		return "narrative"
	case KindPatch:
		return "patch"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is a closed set: EventReasoning, EventNarrative, EventPatch, EventEnd
// and EventUnknown. Consumers switch on the concrete type.
type Event interface {
	Kind() Kind
	Type() EventType
	MarshalZerologObject(e *zerolog.Event)
	isEvent()
}

type EventReasoning struct {
	Text string
}

func (e *EventReasoning) Kind() Kind      { return KindReasoning }
func (e *EventReasoning) Type() EventType { return EventTypeThinking }
func (e *EventReasoning) isEvent()        {}

func (e *EventReasoning) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("kind", e.Kind().String()).Int("len", len(e.Text))
}

type EventNarrative struct {
	Text string
}

func (e *EventNarrative) Kind() Kind      { return KindNarrative }
func (e *EventNarrative) Type() EventType { return EventTypeInfo }
func (e *EventNarrative) isEvent()        {}

func (e *EventNarrative) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("kind", e.Kind().String()).Int("len", len(e.Text))
}

// EventPatch replaces a single form field. A null Value clears the field.
type EventPatch struct {
	Field string
	Value fields.Value
}

func (e *EventPatch) Kind() Kind      { return KindPatch }
func (e *EventPatch) Type() EventType { return EventType(e.Field) }
func (e *EventPatch) isEvent()        {}

func (e *EventPatch) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("kind", e.Kind().String()).
		Str("field", e.Field).
		Str("value_kind", e.Value.Kind().String())
}

type EventEnd struct{}

func (e *EventEnd) Kind() Kind      { return KindEnd }
func (e *EventEnd) Type() EventType { return EventTypeEnd }
func (e *EventEnd) isEvent()        {}

func (e *EventEnd) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("kind", e.Kind().String())
}

// EventUnknown carries a message whose type is not understood by this client.
type EventUnknown struct {
	Type_ EventType
	Value json.RawMessage
}

func (e *EventUnknown) Kind() Kind      { return KindUnknown }
func (e *EventUnknown) Type() EventType { return e.Type_ }
func (e *EventUnknown) isEvent()        {}

func (e *EventUnknown) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("kind", e.Kind().String()).Str("type", string(e.Type_))
}

var (
	_ Event = &EventReasoning{}
	_ Event = &EventNarrative{}
	_ Event = &EventPatch{}
	_ Event = &EventEnd{}
	_ Event = &EventUnknown{}
)
