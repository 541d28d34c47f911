package events

import (
	"encoding/json"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// EventSink receives every decoded stream event.
type EventSink interface {
	PublishEvent(e Envelope) error
}

// NullSink drops everything.
type NullSink struct{}

func (NullSink) PublishEvent(Envelope) error { return nil }

var _ EventSink = NullSink{}

// WatermillSink publishes envelopes as JSON to a watermill publisher topic.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(e Envelope) error {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal envelope to JSON")
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("turn_id", e.TurnID)
	msg.Metadata.Set("sequence_number", strconv.FormatUint(e.Seq, 10))

	err = w.publisher.Publish(w.topic, msg)
	if err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("Failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(e.Type)).Msg("Published event to watermill")
	return nil
}

var _ EventSink = (*WatermillSink)(nil)
