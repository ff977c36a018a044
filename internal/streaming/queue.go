package streaming

import (
	"container/heap"

	"github.com/stardrift/server/internal/worldgen"
	"github.com/stardrift/server/internal/worldmap"
)

// Tier orders load tasks. Lower tiers always dequeue first.
type Tier int

const (
	// TierActive covers full-detail loads inside the active radius.
	TierActive Tier = 0
	// TierDetail covers in-place detail upgrades of already loaded chunks.
	TierDetail Tier = 1
	// TierPreload covers low-detail preloads in the outer ring.
	TierPreload Tier = 2
)

// LoadTask is one queued unit of generation work. Tasks are totally ordered
// by (tier, distance to player at enqueue time, enqueue sequence).
type LoadTask struct {
	Coord    worldmap.ChunkCoord
	Detail   worldgen.DetailLevel
	Tier     Tier
	Distance int

	// Epoch stamps the seed generation the task belongs to. Workers and the
	// result drain discard tasks from dead epochs.
	Epoch uint64

	seq   uint64
	index int
}

// taskQueue is a binary heap of pending load tasks. Not goroutine safe;
// callers hold the manager's queue lock.
type taskQueue struct {
	items []*LoadTask
}

func (q *taskQueue) Len() int { return len(q.items) }

func (q *taskQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.seq < b.seq
}

func (q *taskQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *taskQueue) Push(x any) {
	task := x.(*LoadTask)
	task.index = len(q.items)
	q.items = append(q.items, task)
}

func (q *taskQueue) Pop() any {
	old := q.items
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	task.index = -1
	q.items = old[:n-1]
	return task
}

// push enqueues a task.
func (q *taskQueue) push(task *LoadTask) {
	heap.Push(q, task)
}

// pop dequeues the highest-priority task, or nil when empty.
func (q *taskQueue) pop() *LoadTask {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(q).(*LoadTask)
}

// resort recomputes every task's distance to the player's current chunk and
// restores heap order. Called whenever the player crosses a chunk boundary.
func (q *taskQueue) resort(playerChunk worldmap.ChunkCoord) {
	for _, task := range q.items {
		task.Distance = worldmap.ChebyshevDistance(task.Coord, playerChunk)
	}
	heap.Init(q)
}

// clear drops every pending task.
func (q *taskQueue) clear() {
	q.items = q.items[:0]
}
