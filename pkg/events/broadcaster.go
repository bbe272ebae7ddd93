package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Broadcaster delivers events to live subscribers, keyed by request ID.
// One Broadcaster instance serves the whole process.
type Broadcaster struct {
	mu sync.RWMutex

	// streams: request_id → subscriber_id → channel
	streams map[string]map[string]chan Envelope
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		streams: make(map[string]map[string]chan Envelope),
	}
}

// Subscribe registers a new subscriber for a stream. The returned
// cancel function must be called when the subscriber is done; it
// removes the registration and closes the channel.
func (b *Broadcaster) Subscribe(requestID string) (<-chan Envelope, func()) {
	subID := uuid.New().String()
	ch := make(chan Envelope, subscriberBuffer)

	b.mu.Lock()
	subs, ok := b.streams[requestID]
	if !ok {
		subs = make(map[string]chan Envelope)
		b.streams[requestID] = subs
	}
	subs[subID] = ch
	b.mu.Unlock()

	slog.Debug("Subscriber registered",
		"channel", StreamChannel(requestID), "subscriber_id", subID)

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs, ok := b.streams[requestID]
		if !ok {
			return
		}
		if _, ok := subs[subID]; !ok {
			return
		}
		delete(subs, subID)
		if len(subs) == 0 {
			delete(b.streams, requestID)
		}
		close(ch)
	}
	return ch, cancel
}

// Publish delivers an envelope to every current subscriber of the
// stream. Delivery is non-blocking: a subscriber whose buffer is full
// is skipped, and catches up from the store on its next resume.
func (b *Broadcaster) Publish(requestID string, env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.streams[requestID] {
		select {
		case ch <- env:
		default:
			slog.Warn("Dropping event for slow subscriber",
				"channel", StreamChannel(requestID),
				"subscriber_id", subID,
				"event_id", env.ID)
		}
	}
}

// CloseStream detaches every subscriber of a stream and closes their
// channels. Subscribers observe the close as end-of-stream.
func (b *Broadcaster) CloseStream(requestID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.streams[requestID]
	if !ok {
		return
	}
	delete(b.streams, requestID)
	for _, ch := range subs {
		close(ch)
	}

	slog.Debug("Stream closed", "channel", StreamChannel(requestID),
		"subscribers", len(subs))
}

// SubscriberCount returns the number of live subscribers for a stream.
func (b *Broadcaster) SubscriberCount(requestID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams[requestID])
}
