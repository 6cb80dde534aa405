package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// subscriberBuffer is the outbound line buffer per subscriber. A client that
// falls this many frames behind starts losing events and is evicted on the
// next health tick.
const subscriberBuffer = 100

// healthInterval is how often every subscriber is pinged.
const healthInterval = 10 * time.Second

// Subscriber is one connected event-stream client.
type Subscriber struct {
	ch chan []byte
}

// Lines yields serialized server-sent-event frames, ready to write to the
// client verbatim. The channel is closed when the subscriber is evicted.
func (s *Subscriber) Lines() <-chan []byte { return s.ch }

// Broadcaster fans lifecycle events out to all subscribers. Publication
// never blocks: frames are offered with a non-blocking send and dropped for
// subscribers whose buffer is full.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new client.
func (b *Broadcaster) Subscribe() *Subscriber {
	s := &Subscriber{ch: make(chan []byte, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a client. Safe to call for an already evicted
// subscriber.
func (b *Broadcaster) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Publish serializes the event once and offers the frame to every
// subscriber. Subscribers with a full buffer miss this event.
func (b *Broadcaster) Publish(ev any) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to serialize event", "err", err)
		return
	}
	frame := []byte(fmt.Sprintf("data: %s\n\n", data))

	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- frame:
		default:
			slog.Debug("Subscriber buffer full, dropping event")
		}
	}
}

// pingFrame is the keepalive offered on every health tick.
var pingFrame = []byte("data: ping\n\n")

// RunHealthTicks pings all subscribers every healthInterval and evicts the
// ones whose buffer cannot even take the ping. Blocks until ctx is done.
func (b *Broadcaster) RunHealthTicks(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.pruneStale()
		}
	}
}

func (b *Broadcaster) pruneStale() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- pingFrame:
		default:
			delete(b.subs, s)
			close(s.ch)
			slog.Info("Evicted stale event subscriber")
		}
	}
}

// SubscriberCount reports the current number of subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
