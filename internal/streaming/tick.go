package streaming

import (
	"context"
	"log"
	"time"

	"github.com/stardrift/server/internal/entitypool"
	"github.com/stardrift/server/internal/events"
	"github.com/stardrift/server/internal/worldgen"
	"github.com/stardrift/server/internal/worldmap"
)

// TickReport summarizes what one update pass did.
type TickReport struct {
	PlayerChunk     worldmap.ChunkCoord
	ResultsApplied  int
	EntitiesSpawned int
	ChunksUnloaded  int
	Elapsed         time.Duration
}

// DefaultTickInterval paces Run when the caller passes no interval.
const DefaultTickInterval = 50 * time.Millisecond

// Run ticks the manager at a fixed interval until the context ends.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one streaming update: poll the observer, diff the desired chunk
// set on boundary crossings, then apply finished generation results under
// the per-tick time and entity budgets. Tick is the only structural writer
// of streaming state and must be called from a single goroutine.
func (m *Manager) Tick() TickReport {
	start := m.cfg.Now()

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.reseed.CompareAndSwap(true, false) {
		m.resetWorldLocked()
	}

	position := m.observer.Position()
	chunk := worldmap.WorldToChunk(position, m.cfg.ChunkSize)
	report := TickReport{PlayerChunk: chunk}

	if !m.havePlayerChunk || chunk != m.playerChunk {
		m.onPlayerChunkChangedLocked(chunk, &report)
	}

	m.applyResultsLocked(start, &report)

	report.Elapsed = m.cfg.Now().Sub(start)
	if m.profiler != nil {
		m.profiler.Record("streaming.tick", report.Elapsed)
	}
	return report
}

// onPlayerChunkChangedLocked rebuilds the desired chunk set around the new
// player chunk and reconciles records against it: missing chunks get
// queued, loaded chunks get upgraded or downgraded in place, and anything
// beyond the despawn radius unloads immediately.
func (m *Manager) onPlayerChunkChangedLocked(chunk worldmap.ChunkCoord, report *TickReport) {
	prev := m.playerChunk
	hadPrev := m.havePlayerChunk
	m.playerChunk = chunk
	m.havePlayerChunk = true
	if hadPrev {
		m.bus.Publish(events.Event{Type: events.PlayerEnteredChunk, Coord: chunk, PrevCoord: prev})
	}

	for _, coord := range worldmap.CoordsWithin(chunk, m.cfg.PreloadRadius) {
		distance := worldmap.ChebyshevDistance(coord, chunk)
		want := worldgen.LowDetail
		if distance <= m.cfg.ActiveRadius {
			want = worldgen.FullDetail
		}

		record, ok := m.records[coord]
		if !ok {
			record = &chunkRecord{coord: coord, state: StateQueued, targetDetail: want}
			m.records[coord] = record
			tier := TierPreload
			if want == worldgen.FullDetail {
				tier = TierActive
			}
			m.enqueue(LoadTask{Coord: coord, Detail: want, Tier: tier, Distance: distance})
			continue
		}

		record.targetDetail = want
		switch {
		case want == worldgen.LowDetail &&
			(record.state == StateFullDetail || record.state == StateInstantiating):
			m.downgradeLocked(record)
		case want == worldgen.FullDetail && record.state == StateLowDetail:
			record.state = StateQueued
			record.upgrading = true
			m.enqueue(LoadTask{Coord: coord, Detail: worldgen.FullDetail, Tier: TierDetail, Distance: distance})
		}
	}

	// Chunks between the preload and despawn radii stay loaded as
	// hysteresis; only crossing the despawn radius tears them down.
	for coord, record := range m.records {
		if worldmap.ChebyshevDistance(coord, chunk) > m.cfg.DespawnRadius {
			m.unloadLocked(record)
			report.ChunksUnloaded++
		}
	}

	m.queueMu.Lock()
	m.queue.resort(chunk)
	m.queueMu.Unlock()
}

// applyResultsLocked drains the instantiation backlog and pending worker
// results until a budget runs out. The time budget is checked between
// entities, so one tick can split a large chunk across several frames.
func (m *Manager) applyResultsLocked(start time.Time, report *TickReport) {
	entityBudget := m.cfg.EntitiesPerTick

	for {
		if m.cfg.Now().Sub(start) >= m.cfg.TimeBudget {
			return
		}
		if m.progressInstantiationLocked(&entityBudget, report) {
			continue
		}
		if !m.canStartLoadLocked() {
			return
		}
		result, ok := m.popResult()
		if !ok {
			return
		}
		if m.applyResultLocked(result) {
			report.ResultsApplied++
		}
	}
}

// progressInstantiationLocked spawns at most one pending entity, or
// finalizes a chunk whose backlog is empty. Returns false when there is no
// instantiation work left or the entity budget is spent.
func (m *Manager) progressInstantiationLocked(entityBudget *int, report *TickReport) bool {
	for len(m.instantiating) > 0 {
		coord := m.instantiating[0]
		record, ok := m.records[coord]
		if !ok || record.state != StateInstantiating {
			m.instantiating = m.instantiating[1:]
			continue
		}
		if len(record.pendingSpawns) == 0 {
			m.finalizeLocked(record)
			m.instantiating = m.instantiating[1:]
			continue
		}
		if *entityBudget <= 0 {
			return false
		}

		descriptor := record.pendingSpawns[0]
		record.pendingSpawns = record.pendingSpawns[1:]
		if !m.spawnLocked(record, descriptor) {
			m.instantiating = m.instantiating[1:]
			return true
		}
		*entityBudget--
		report.EntitiesSpawned++
		return true
	}
	return false
}

// canStartLoadLocked enforces the minimum interval between chunk load
// starts that smooths load spikes during fast travel.
func (m *Manager) canStartLoadLocked() bool {
	if m.cfg.MinLoadInterval <= 0 || !m.haveLoadStart {
		return true
	}
	return m.cfg.Now().Sub(m.lastLoadStart) >= m.cfg.MinLoadInterval
}

func (m *Manager) markLoadStartLocked() {
	m.lastLoadStart = m.cfg.Now()
	m.haveLoadStart = true
}

// applyResultLocked folds one worker result into the chunk record. Results
// for dead epochs, untracked coordinates, or coordinates that have since
// left the streaming window are discarded; a stale detail level requeues.
func (m *Manager) applyResultLocked(result generationResult) bool {
	if result.task.Epoch != m.epoch.Load() {
		return false
	}
	record, ok := m.records[result.task.Coord]
	if !ok {
		return false
	}
	if m.havePlayerChunk &&
		worldmap.ChebyshevDistance(record.coord, m.playerChunk) > m.cfg.PreloadRadius {
		if record.loaded {
			// Hysteresis band: the chunk stays loaded as it is, only the
			// in-flight result is stale. Abandon any pending upgrade.
			record.upgrading = false
			if record.state == StateQueued || record.state == StateGenerating {
				record.state = StateLowDetail
			}
			return false
		}
		delete(m.records, record.coord)
		return false
	}
	if result.data.Detail != record.targetDetail {
		distance := worldmap.ChebyshevDistance(record.coord, m.playerChunk)
		tier := TierPreload
		if record.targetDetail == worldgen.FullDetail {
			tier = TierActive
			if record.loaded {
				tier = TierDetail
			}
		}
		record.state = StateQueued
		m.enqueue(LoadTask{Coord: record.coord, Detail: record.targetDetail, Tier: tier, Distance: distance})
		return false
	}

	record.background = result.data.Background
	if result.data.Detail == worldgen.LowDetail {
		record.descriptors = nil
		record.state = StateLowDetail
		if !record.loaded {
			record.loaded = true
			m.bus.Publish(events.Event{Type: events.ChunkLoaded, Coord: record.coord})
		}
		m.markLoadStartLocked()
		return true
	}

	record.descriptors = result.data.Entities
	record.pendingSpawns = append([]worldgen.EntityDescriptor(nil), result.data.Entities...)
	record.state = StateInstantiating
	m.instantiating = append(m.instantiating, record.coord)
	m.markLoadStartLocked()
	return true
}

// finalizeLocked promotes a fully instantiated chunk and emits its
// lifecycle event.
func (m *Manager) finalizeLocked(record *chunkRecord) {
	record.state = StateFullDetail
	switch {
	case record.upgrading:
		record.upgrading = false
		m.bus.Publish(events.Event{Type: events.DetailUpgraded, Coord: record.coord})
	case !record.loaded:
		m.bus.Publish(events.Event{Type: events.ChunkLoaded, Coord: record.coord})
	}
	record.loaded = true
}

// spawnLocked checks out a pooled instance for one descriptor and hands it
// to the instantiator. An instantiation error drops the whole chunk: the
// descriptor set is deterministic, so retrying would fail identically.
func (m *Manager) spawnLocked(record *chunkRecord, descriptor worldgen.EntityDescriptor) bool {
	entity, evicted := m.pools.Checkout(descriptor.TypeTag)
	if evicted != nil {
		m.detachEvictedLocked(entity, evicted)
	}

	entity.ID = descriptor.EntityID
	entity.Position = descriptor.Position
	entity.Rotation = descriptor.Rotation
	entity.Scale = descriptor.Scale

	if err := m.scenery.Instantiate(descriptor, entity); err != nil {
		m.pools.Return(entity)
		if !m.spawnFailureLogged[record.coord] {
			m.spawnFailureLogged[record.coord] = true
			log.Printf("[Stream] dropping chunk %s: instantiate %s (entity %d): %v",
				record.coord.String(), descriptor.TypeTag, descriptor.EntityID, err)
		}
		m.releaseEntitiesLocked(record)
		delete(m.records, record.coord)
		return false
	}

	m.owners[entity.ID] = record.coord
	record.entities = append(record.entities, entity)
	return true
}

// detachEvictedLocked deregisters a forcibly reclaimed entity from the
// chunk that still references it. reused is the recycled instance (same
// pointer that sat in the old chunk), notice carries its pre-reset ID.
func (m *Manager) detachEvictedLocked(reused, notice *entitypool.Entity) {
	coord, ok := m.owners[notice.ID]
	if !ok {
		return
	}
	delete(m.owners, notice.ID)
	m.scenery.Release(notice)

	record, ok := m.records[coord]
	if !ok {
		return
	}
	for i, candidate := range record.entities {
		if candidate == reused {
			record.entities = append(record.entities[:i], record.entities[i+1:]...)
			break
		}
	}
}

// releaseEntitiesLocked despawns every live entity of a record and returns
// the instances to their pools.
func (m *Manager) releaseEntitiesLocked(record *chunkRecord) {
	for _, entity := range record.entities {
		delete(m.owners, entity.ID)
		m.scenery.Release(entity)
		m.pools.Return(entity)
	}
	record.entities = nil
}

// downgradeLocked drops a chunk to low detail in place: entities despawn,
// background data survives.
func (m *Manager) downgradeLocked(record *chunkRecord) {
	m.releaseEntitiesLocked(record)
	record.pendingSpawns = nil
	record.upgrading = false
	record.state = StateLowDetail
	if record.loaded {
		m.bus.Publish(events.Event{Type: events.DetailDowngraded, Coord: record.coord})
	} else {
		record.loaded = true
		m.bus.Publish(events.Event{Type: events.ChunkLoaded, Coord: record.coord})
	}
}

// unloadLocked tears a chunk down completely.
func (m *Manager) unloadLocked(record *chunkRecord) {
	m.releaseEntitiesLocked(record)
	wasLoaded := record.loaded
	delete(m.records, record.coord)
	delete(m.spawnFailureLogged, record.coord)
	if wasLoaded {
		m.bus.Publish(events.Event{Type: events.ChunkUnloaded, Coord: record.coord})
	}
}

// resetWorldLocked unloads everything after a seed change. The next tick
// sees no player chunk and rebuilds the streaming window from scratch.
func (m *Manager) resetWorldLocked() {
	discarded := len(m.records)
	for _, record := range m.records {
		m.releaseEntitiesLocked(record)
		if record.loaded {
			m.bus.Publish(events.Event{Type: events.ChunkUnloaded, Coord: record.coord})
		}
	}
	m.records = make(map[worldmap.ChunkCoord]*chunkRecord)
	m.owners = make(map[int64]worldmap.ChunkCoord)
	m.instantiating = nil
	m.spawnFailureLogged = make(map[worldmap.ChunkCoord]bool)
	m.havePlayerChunk = false
	log.Printf("[Stream] world reset, %d chunks discarded", discarded)
}
