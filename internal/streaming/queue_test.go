package streaming

import (
	"testing"

	"github.com/stardrift/server/internal/worldgen"
	"github.com/stardrift/server/internal/worldmap"
)

func TestQueueOrdersByTierThenDistance(t *testing.T) {
	var q taskQueue
	q.push(&LoadTask{Coord: worldmap.ChunkCoord{X: 0, Y: 1}, Tier: TierPreload, Distance: 1, seq: 1})
	q.push(&LoadTask{Coord: worldmap.ChunkCoord{X: 5, Y: 0}, Tier: TierActive, Distance: 5, seq: 2})
	q.push(&LoadTask{Coord: worldmap.ChunkCoord{X: 2, Y: 0}, Tier: TierActive, Distance: 2, seq: 3})
	q.push(&LoadTask{Coord: worldmap.ChunkCoord{X: 0, Y: 0}, Tier: TierDetail, Distance: 0, seq: 4})
	q.push(&LoadTask{Coord: worldmap.ChunkCoord{X: 0, Y: 2}, Tier: TierActive, Distance: 2, seq: 5})

	expected := []worldmap.ChunkCoord{
		{X: 2, Y: 0}, // tier 0, distance 2, first enqueued
		{X: 0, Y: 2}, // tier 0, distance 2, second enqueued
		{X: 5, Y: 0}, // tier 0, distance 5
		{X: 0, Y: 0}, // tier 1
		{X: 0, Y: 1}, // tier 2
	}
	for i, want := range expected {
		task := q.pop()
		if task == nil {
			t.Fatalf("pop %d returned nil", i)
		}
		if task.Coord != want {
			t.Fatalf("pop %d = %v, expected %v", i, task.Coord, want)
		}
	}
	if q.pop() != nil {
		t.Fatal("drained queue still returned a task")
	}
}

func TestQueueResortTracksPlayer(t *testing.T) {
	var q taskQueue
	q.push(&LoadTask{Coord: worldmap.ChunkCoord{X: 0, Y: 0}, Tier: TierActive, Distance: 0, seq: 1})
	q.push(&LoadTask{Coord: worldmap.ChunkCoord{X: 10, Y: 0}, Tier: TierActive, Distance: 10, seq: 2})

	// Player jumps next to the far chunk; it must now dequeue first.
	q.resort(worldmap.ChunkCoord{X: 9, Y: 0})

	first := q.pop()
	if first.Coord != (worldmap.ChunkCoord{X: 10, Y: 0}) {
		t.Fatalf("closest-after-resort = %v, expected (10,0)", first.Coord)
	}
	if first.Distance != 1 {
		t.Fatalf("distance = %d after resort, expected 1", first.Distance)
	}
}

func TestQueueClear(t *testing.T) {
	var q taskQueue
	q.push(&LoadTask{Coord: worldmap.ChunkCoord{X: 1, Y: 1}, Detail: worldgen.FullDetail})
	q.clear()
	if q.Len() != 0 || q.pop() != nil {
		t.Fatal("clear left tasks behind")
	}
}
