package events

import "github.com/rs/zerolog/log"

// Sink is a destination for inference events. Implementations publish to
// message buses, logs, or test collectors.
type Sink interface {
	PublishEvent(event Event) error
}

// NullSink drops every event.
type NullSink struct{}

func (NullSink) PublishEvent(Event) error { return nil }

var _ Sink = NullSink{}

// PublishToSinks fans an event out to all sinks, logging failures instead of
// letting a broken sink abort the inference that produced the event.
func PublishToSinks(sinks []Sink, event Event) {
	for _, sink := range sinks {
		if err := sink.PublishEvent(event); err != nil {
			log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("failed to publish event")
		}
	}
}
