package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

func makeEnvelope(id int64, requestID, message string) Envelope {
	return Envelope{
		ID: id,
		Event: reasoning.Event{
			Type:    reasoning.EventTypeStatus,
			Message: message,
			Phase:   reasoning.PhaseAnalyzing,
			Metadata: reasoning.EventMetadata{
				RequestID: requestID,
				Source:    reasoning.SourceFallback,
			},
		},
	}
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	b := NewBroadcaster()

	ch1, cancel1 := b.Subscribe("req-1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("req-1")
	defer cancel2()
	other, cancelOther := b.Subscribe("req-2")
	defer cancelOther()

	b.Publish("req-1", makeEnvelope(1, "req-1", "Analyzing your request..."))

	for _, ch := range []<-chan Envelope{ch1, ch2} {
		select {
		case env := <-ch:
			assert.Equal(t, int64(1), env.ID)
			assert.Equal(t, "Analyzing your request...", env.Event.Message)
		default:
			t.Fatal("expected envelope to be delivered")
		}
	}

	select {
	case <-other:
		t.Fatal("envelope leaked to another stream")
	default:
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroadcaster()

	ch, cancel := b.Subscribe("req-1")
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish("req-1", makeEnvelope(int64(i+1), "req-1", "msg"))
	}

	// Buffer holds exactly subscriberBuffer envelopes; overflow dropped
	assert.Len(t, ch, subscriberBuffer)
	first := <-ch
	assert.Equal(t, int64(1), first.ID)
}

func TestCancelRemovesSubscriber(t *testing.T) {
	b := NewBroadcaster()

	ch, cancel := b.Subscribe("req-1")
	require.Equal(t, 1, b.SubscriberCount("req-1"))

	cancel()
	assert.Equal(t, 0, b.SubscriberCount("req-1"))

	_, open := <-ch
	assert.False(t, open)

	// Second cancel is a no-op
	cancel()
}

func TestCloseStreamClosesChannels(t *testing.T) {
	b := NewBroadcaster()

	ch1, cancel1 := b.Subscribe("req-1")
	ch2, cancel2 := b.Subscribe("req-1")

	b.CloseStream("req-1")
	assert.Equal(t, 0, b.SubscriberCount("req-1"))

	for _, ch := range []<-chan Envelope{ch1, ch2} {
		_, open := <-ch
		assert.False(t, open)
	}

	// Cancels after close are no-ops
	cancel1()
	cancel2()

	// Publishing to a closed stream is harmless
	b.Publish("req-1", makeEnvelope(1, "req-1", "msg"))
}
