package events

import (
	"testing"

	"github.com/stardrift/server/internal/worldmap"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	first, cancelFirst := bus.Subscribe(4)
	second, cancelSecond := bus.Subscribe(4)
	defer cancelFirst()
	defer cancelSecond()

	event := Event{Type: ChunkLoaded, Coord: worldmap.ChunkCoord{X: 1, Y: 2}}
	bus.Publish(event)

	for name, ch := range map[string]<-chan Event{"first": first, "second": second} {
		select {
		case got := <-ch:
			if got != event {
				t.Fatalf("%s subscriber got %+v, expected %+v", name, got, event)
			}
		default:
			t.Fatalf("%s subscriber received nothing", name)
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()

	if _, open := <-ch; open {
		t.Fatal("channel still open after cancel")
	}
	if bus.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d after cancel", bus.SubscriberCount())
	}

	// Double cancel must not panic.
	cancel()
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	// Second publish overflows the single-slot buffer; it must drop, not
	// block the caller.
	bus.Publish(Event{Type: ChunkLoaded})
	bus.Publish(Event{Type: ChunkUnloaded})

	if bus.Dropped() != 1 {
		t.Fatalf("dropped = %d, expected 1", bus.Dropped())
	}
}

func TestPlayerEnteredChunkCarriesBothCoords(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(Event{
		Type:      PlayerEnteredChunk,
		Coord:     worldmap.ChunkCoord{X: 5, Y: 0},
		PrevCoord: worldmap.ChunkCoord{X: 4, Y: 0},
	})

	got := <-ch
	if got.Coord != (worldmap.ChunkCoord{X: 5, Y: 0}) || got.PrevCoord != (worldmap.ChunkCoord{X: 4, Y: 0}) {
		t.Fatalf("unexpected coords: %+v", got)
	}
}
