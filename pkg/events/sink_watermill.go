package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// WatermillSink publishes events to a watermill Publisher, so they can be
// distributed through a message bus to multiple subscribers.
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

// PublishEvent serializes the event to JSON and sends it as a watermill
// message on the sink's topic.
func (w *WatermillSink) PublishEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshalling event")
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := w.publisher.Publish(w.topic, msg); err != nil {
		return errors.Wrapf(err, "publishing event to %s", w.topic)
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("published event")
	return nil
}

var _ Sink = (*WatermillSink)(nil)
