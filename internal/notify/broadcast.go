// Package notify implements the in-process fan-out between the scheduler
// and live subscribers (the web layer attaches one subscriber per connected
// dashboard client). Delivery is per-subscriber buffered and strictly
// non-blocking: a subscriber that stops draining its channel loses matches
// rather than stalling the poll loop.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mvardas/go-neighborhood-watch/internal/domain"
)

// defaultBuffer is the per-subscriber channel capacity. Matches are small
// and rare relative to poll cycles, so a short buffer absorbs bursts.
const defaultBuffer = 64

// Broadcaster fans each published match out to every current subscriber.
// The zero value is not usable; call NewBroadcaster.
type Broadcaster struct {
	log zerolog.Logger

	mu   sync.RWMutex
	subs map[string]chan domain.Match
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		log:  log.With().Str("component", "notify").Logger(),
		subs: make(map[string]chan domain.Match),
	}
}

// Subscribe registers a new subscriber and returns its id plus the channel
// matches will be delivered on. The channel is closed by Unsubscribe.
func (b *Broadcaster) Subscribe() (string, <-chan domain.Match) {
	id := uuid.NewString()
	ch := make(chan domain.Match, defaultBuffer)
	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored, so it is safe to call from a connection teardown path twice.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish delivers a match to every subscriber without blocking. Matches
// are dropped per-subscriber when a buffer is full.
func (b *Broadcaster) Publish(m domain.Match) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- m:
		default:
			b.log.Warn().Str("subscriber", id).Str("match_id", m.ID).Msg("subscriber buffer full, match dropped")
		}
	}
}

// Count returns the number of active subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Sink adapts the broadcaster to the scheduler's notification callback.
func (b *Broadcaster) Sink() func(domain.Match) {
	return b.Publish
}
