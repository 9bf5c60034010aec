package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillSinkPublishesJSON(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer func() { _ = pubSub.Close() }()

	messages, err := pubSub.Subscribe(context.Background(), "chat")
	require.NoError(t, err)

	sink := NewWatermillSink(pubSub, "chat")
	meta := EventMetadata{ID: uuid.New(), Model: "gpt-4o"}
	require.NoError(t, sink.PublishEvent(NewPartialCompletionEvent(meta, "He", "He")))

	select {
	case msg := <-messages:
		var decoded EventPartialCompletion
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventTypePartialCompletion, decoded.Type())
		assert.Equal(t, "He", decoded.Delta)
		assert.Equal(t, meta.ID, decoded.Metadata().ID)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestPublishToSinksIgnoresFailingSink(t *testing.T) {
	var received []Event
	collector := sinkFunc(func(e Event) error {
		received = append(received, e)
		return nil
	})
	failing := sinkFunc(func(Event) error {
		return assert.AnError
	})

	PublishToSinks([]Sink{failing, collector}, NewStartEvent(EventMetadata{ID: uuid.New()}))
	require.Len(t, received, 1)
	assert.Equal(t, EventTypeStart, received[0].Type())
}

type sinkFunc func(Event) error

func (f sinkFunc) PublishEvent(e Event) error { return f(e) }
