// Package events fans persisted reasoning events out to live
// subscribers. Each stream has its own subscriber set; the store, not
// this package, is the source of truth for catchup.
package events

import (
	"fmt"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

// Envelope is what subscribers receive: an event plus its sequence
// number, so clients can resume with since_seq on reconnect.
type Envelope struct {
	ID    int64
	Event reasoning.Event
}

// subscriberBuffer is the per-subscriber channel depth. SSE writers
// that fall further behind than this lose events and must catch up
// from the store.
const subscriberBuffer = 64

// StreamChannel returns the logical channel name for a request's
// events. Used only for logging; routing is by request ID.
func StreamChannel(requestID string) string {
	return fmt.Sprintf("stream:%s", requestID)
}
