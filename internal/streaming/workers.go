package streaming

import (
	"github.com/stardrift/server/internal/worldmap"
)

// worker is the generation loop run by each pool goroutine. Workers sleep
// on the semaphore, drain the queue, and hand finished chunk data back to
// the update goroutine through the results slice. Generation only reads the
// random service, so any number of workers can run concurrently.
func (m *Manager) worker() {
	defer m.wg.Done()
	for range m.sem {
		if m.stopping.Load() {
			return
		}
		for {
			task := m.popTask()
			if task == nil {
				break
			}
			m.markGenerating(task.Coord)
			data := m.generator.Generate(task.Coord, m.cfg.ChunkSize, task.Detail)
			m.pushResult(generationResult{task: *task, data: data})
			if m.stopping.Load() {
				return
			}
		}
	}
}

// enqueue stamps and queues a load task, then wakes a worker. The semaphore
// send is non-blocking: once it is full every worker already has a wakeup
// pending, and the drain loop picks up the extra tasks.
func (m *Manager) enqueue(task LoadTask) {
	task.Epoch = m.epoch.Load()

	m.queueMu.Lock()
	m.taskSeq++
	task.seq = m.taskSeq
	m.queue.push(&task)
	m.queueMu.Unlock()

	select {
	case m.sem <- struct{}{}:
	default:
	}
}

// popTask dequeues the highest-priority live task, skipping any stamped
// with a dead epoch.
func (m *Manager) popTask() *LoadTask {
	current := m.epoch.Load()
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	for {
		task := m.queue.pop()
		if task == nil || task.Epoch == current {
			return task
		}
	}
}

// markGenerating flips a queued record to StateGenerating so the query
// surface can see in-flight work. This is the only record write made off
// the update goroutine.
func (m *Manager) markGenerating(coord worldmap.ChunkCoord) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if record, ok := m.records[coord]; ok && record.state == StateQueued {
		record.state = StateGenerating
	}
}

// pushResult hands a finished chunk to the update goroutine. Results from
// dead epochs are dropped at the door.
func (m *Manager) pushResult(result generationResult) {
	if result.task.Epoch != m.epoch.Load() {
		return
	}
	m.resultsMu.Lock()
	m.results = append(m.results, result)
	m.resultsMu.Unlock()
}

// popResult takes the oldest pending result, if any.
func (m *Manager) popResult() (generationResult, bool) {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()
	if len(m.results) == 0 {
		return generationResult{}, false
	}
	result := m.results[0]
	m.results = m.results[1:]
	return result, true
}
