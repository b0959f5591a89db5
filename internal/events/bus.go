// Package events fans controller state snapshots out to listeners, one
// channel per SSE client.
package events

import (
	"sync"

	"github.com/opencabin/caraudio-go/internal/models"
)

const subBufferSize = 8

// Bus delivers state snapshots to subscribers without ever blocking the
// publisher. A subscriber that falls behind loses intermediate snapshots;
// each snapshot is complete, so the next delivery catches it up.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan models.State
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan models.State),
	}
}

// Subscribe registers a listener under the given id and returns its channel.
// Call Unsubscribe with the same id when done.
func (b *Bus) Subscribe(id string) <-chan models.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan models.State, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish hands a snapshot to every subscriber with room in its buffer.
func (b *Bus) Publish(state models.State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- state:
		default:
			// Slow listener, drop this snapshot.
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
