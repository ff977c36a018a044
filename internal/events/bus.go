package events

import (
	"log"
	"sync"

	"github.com/stardrift/server/internal/worldmap"
)

// Type enumerates world lifecycle notifications. This bus replaces engine
// signal wiring: external systems subscribe instead of hooking node
// callbacks.
type Type string

const (
	ChunkLoaded        Type = "chunk_loaded"
	ChunkUnloaded      Type = "chunk_unloaded"
	DetailUpgraded     Type = "detail_upgraded"
	DetailDowngraded   Type = "detail_downgraded"
	PlayerEnteredChunk Type = "player_entered_chunk"
)

// Event carries one lifecycle notification. PrevCoord is only meaningful
// for PlayerEnteredChunk, where Coord is the chunk entered and PrevCoord
// the one left.
type Event struct {
	Type      Type                `json:"type"`
	Coord     worldmap.ChunkCoord `json:"coord"`
	PrevCoord worldmap.ChunkCoord `json:"prev_coord,omitempty"`
}

// Bus is a typed publish/subscribe queue. Publishing never blocks: a
// subscriber that stops draining loses events rather than stalling the
// world update loop.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int

	dropped uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// DefaultSubscriberBuffer is the queue depth handed to subscribers that do
// not pick their own.
const DefaultSubscriberBuffer = 64

// Subscribe registers a listener and returns its channel plus a cancel
// function. The channel closes when cancelled.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping it for any whose
// buffer is full.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
			b.dropped++
			if b.dropped%1000 == 1 {
				log.Printf("[Events] slow subscriber, %d events dropped so far", b.dropped)
			}
		}
	}
}

// Dropped reports how many events were discarded because of full
// subscriber buffers.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// SubscriberCount reports the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
