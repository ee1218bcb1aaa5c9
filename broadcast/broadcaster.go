// Package broadcast fans wall events out to live viewers.
package broadcast

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/livewall"
)

// DefaultBufferSize is the per-subscriber channel buffer.
const DefaultBufferSize = 64

// Broadcaster is an in-process pub/sub keyed by wall id. Subscriptions are
// never persisted and start empty on every process start.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan livewall.Event // wallID -> subID -> ch
	bufferSize  int
	closed      bool
	log         *zap.SugaredLogger
}

// New creates a broadcaster. A bufferSize <= 0 uses DefaultBufferSize and a
// nil logger discards output.
func New(bufferSize int, log *zap.SugaredLogger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan livewall.Event),
		bufferSize:  bufferSize,
		log:         log.With("component", "broadcaster"),
	}
}

// Subscribe registers a viewer of wallID. The returned channel is closed on
// Unsubscribe, on Close, or once ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, wallID string) (<-chan livewall.Event, string) {
	subID := uuid.NewString()
	ch := make(chan livewall.Event, b.bufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[wallID]; !ok {
		b.subscribers[wallID] = make(map[string]chan livewall.Event)
	}
	b.subscribers[wallID][subID] = ch
	b.mu.Unlock()

	b.log.Debugw("subscriber added", "wall_id", wallID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(wallID, subID)
	}()

	return ch, subID
}

// Publish delivers event to every subscriber of event.WallID. It never
// blocks: a subscriber with a full buffer misses the event.
func (b *Broadcaster) Publish(event livewall.Event) {
	// The read lock is held through the sends so Unsubscribe cannot close a
	// channel underneath us.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subID, ch := range b.subscribers[event.WallID] {
		select {
		case ch <- event:
		default:
			b.log.Warnw("dropped event for slow subscriber",
				"wall_id", event.WallID,
				"sub_id", subID,
				"type", event.Type)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids are
// ignored, so it is safe to call more than once.
func (b *Broadcaster) Unsubscribe(wallID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[wallID]
	if !ok {
		return
	}
	ch, ok := subs[subID]
	if !ok {
		return
	}
	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, wallID)
	}

	b.log.Debugw("subscriber removed", "wall_id", wallID, "sub_id", subID)
}

// Subscribers returns the number of live subscriptions for wallID.
func (b *Broadcaster) Subscribers(wallID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[wallID])
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for wallID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, wallID)
	}
	b.closed = true
}
