package streaming

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stardrift/server/internal/entitypool"
	"github.com/stardrift/server/internal/events"
	"github.com/stardrift/server/internal/performance"
	"github.com/stardrift/server/internal/seedrand"
	"github.com/stardrift/server/internal/worldgen"
	"github.com/stardrift/server/internal/worldmap"
)

// ChunkState is the lifecycle state of one chunk coordinate.
type ChunkState int

const (
	StateUnloaded ChunkState = iota
	StateQueued
	StateGenerating
	StateInstantiating
	StateFullDetail
	StateLowDetail
)

// String implements fmt.Stringer for logging and the query surface.
func (s ChunkState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateGenerating:
		return "generating"
	case StateInstantiating:
		return "instantiating"
	case StateFullDetail:
		return "full_detail"
	case StateLowDetail:
		return "low_detail"
	default:
		return "unloaded"
	}
}

// PositionSource exposes the current position of the entity the streaming
// system centers around. Polled once per tick, never pushed.
type PositionSource interface {
	Position() worldmap.Point
}

// Instantiator materializes the live side of an entity from its descriptor
// and pooled instance. An Instantiate error means the entity cannot exist
// (missing assets, bad configuration) and aborts the whole chunk load.
type Instantiator interface {
	Instantiate(descriptor worldgen.EntityDescriptor, entity *entitypool.Entity) error
	Release(entity *entitypool.Entity)
}

// noopInstantiator backs headless operation and tests.
type noopInstantiator struct{}

func (noopInstantiator) Instantiate(worldgen.EntityDescriptor, *entitypool.Entity) error { return nil }
func (noopInstantiator) Release(*entitypool.Entity)                                      {}

// Config holds the streaming tuning knobs. Zero values fall back to
// defaults; radii are in chunks, measured by Chebyshev distance.
type Config struct {
	ChunkSize       float64
	ActiveRadius    int
	PreloadRadius   int
	DespawnRadius   int
	WorkerCount     int
	TimeBudget      time.Duration
	EntitiesPerTick int
	MinLoadInterval time.Duration

	// Now is the clock used for budget accounting. Overridable in tests.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = worldmap.DefaultChunkSize
	}
	if c.ActiveRadius <= 0 {
		c.ActiveRadius = 2
	}
	if c.PreloadRadius < c.ActiveRadius {
		c.PreloadRadius = c.ActiveRadius + 2
	}
	if c.DespawnRadius < c.PreloadRadius {
		c.DespawnRadius = c.PreloadRadius + 1
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 2
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = 4 * time.Millisecond
	}
	if c.EntitiesPerTick <= 0 {
		c.EntitiesPerTick = 32
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// chunkRecord tracks one chunk's runtime state. Mutated only on the update
// goroutine; read through the state lock by the query surface.
type chunkRecord struct {
	coord        worldmap.ChunkCoord
	state        ChunkState
	targetDetail worldgen.DetailLevel
	background   worldgen.BackgroundParams
	descriptors  []worldgen.EntityDescriptor

	pendingSpawns []worldgen.EntityDescriptor
	entities      []*entitypool.Entity
	upgrading     bool
	loaded        bool
}

// ChunkExport is the snapshottable view of one tracked chunk, consumed by
// the save-game layer.
type ChunkExport struct {
	Coord      worldmap.ChunkCoord         `json:"coord"`
	State      string                      `json:"state"`
	Background worldgen.BackgroundParams   `json:"background"`
	Entities   []worldgen.EntityDescriptor `json:"entities,omitempty"`
}

// generationResult is the handoff payload from a worker to the update loop.
type generationResult struct {
	task LoadTask
	data worldgen.ChunkData
}

// Manager orchestrates chunk streaming around the observer. Every tick it
// diffs the desired chunk set against loaded records, queues prioritized
// generation work for the worker pool, and applies finished results on its
// single update goroutine under per-tick budgets.
type Manager struct {
	cfg       Config
	random    *seedrand.Service
	generator *worldgen.Generator
	pools     *entitypool.Service
	bus       *events.Bus
	observer  PositionSource
	scenery   Instantiator
	profiler  *performance.Profiler

	// epoch counts seed generations. Tasks and results stamped with a dead
	// epoch are discarded wherever they surface.
	epoch  atomic.Uint64
	reseed atomic.Bool

	queueMu sync.Mutex
	queue   taskQueue
	taskSeq uint64

	sem      chan struct{}
	stopping atomic.Bool
	wg       sync.WaitGroup

	resultsMu sync.Mutex
	results   []generationResult

	// stateMu guards records and owners so HTTP handlers can read them;
	// all writes happen on the update goroutine.
	stateMu sync.RWMutex
	records map[worldmap.ChunkCoord]*chunkRecord
	owners  map[int64]worldmap.ChunkCoord

	instantiating []worldmap.ChunkCoord

	playerChunk     worldmap.ChunkCoord
	havePlayerChunk bool
	lastLoadStart   time.Time
	haveLoadStart   bool

	spawnFailureLogged map[worldmap.ChunkCoord]bool
}

// NewManager wires the streaming manager and starts its worker pool.
// observer is required; scenery, bus and profiler may be nil.
func NewManager(cfg Config, random *seedrand.Service, generator *worldgen.Generator,
	pools *entitypool.Service, bus *events.Bus, observer PositionSource,
	scenery Instantiator, profiler *performance.Profiler) *Manager {

	cfg.applyDefaults()
	if scenery == nil {
		scenery = noopInstantiator{}
	}
	if bus == nil {
		bus = events.NewBus()
	}

	m := &Manager{
		cfg:                cfg,
		random:             random,
		generator:          generator,
		pools:              pools,
		bus:                bus,
		observer:           observer,
		scenery:            scenery,
		profiler:           profiler,
		sem:                make(chan struct{}, 4096),
		records:            make(map[worldmap.ChunkCoord]*chunkRecord),
		owners:             make(map[int64]worldmap.ChunkCoord),
		spawnFailureLogged: make(map[worldmap.ChunkCoord]bool),
	}

	// A seed change invalidates every queued and in-flight task; the next
	// tick tears the old world down and rebuilds under the new seed.
	random.OnSeedChange(func(oldSeed, newSeed int64) {
		m.epoch.Add(1)
		m.queueMu.Lock()
		m.queue.clear()
		m.queueMu.Unlock()
		m.resultsMu.Lock()
		m.results = nil
		m.resultsMu.Unlock()
		m.reseed.Store(true)
		log.Printf("[Stream] seed change %d -> %d: pending work discarded", oldSeed, newSeed)
	})

	m.wg.Add(cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		go m.worker()
	}
	return m
}

// Events returns the lifecycle event bus.
func (m *Manager) Events() *events.Bus {
	return m.bus
}

// Close stops the worker pool and joins all workers. The manager must not
// be ticked after Close returns.
func (m *Manager) Close() {
	m.stopping.Store(true)
	for i := 0; i < m.cfg.WorkerCount; i++ {
		select {
		case m.sem <- struct{}{}:
		default:
		}
	}
	m.wg.Wait()
}

// IsChunkLoaded reports whether the coordinate holds a loaded chunk at
// either detail level.
func (m *Manager) IsChunkLoaded(coord worldmap.ChunkCoord) bool {
	state := m.State(coord)
	return state == StateFullDetail || state == StateLowDetail
}

// State returns the lifecycle state for a coordinate; StateUnloaded for
// unknown coordinates.
func (m *Manager) State(coord worldmap.ChunkCoord) ChunkState {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	record, ok := m.records[coord]
	if !ok {
		return StateUnloaded
	}
	return record.state
}

// EntitiesInChunk returns the generated entity descriptors for a tracked
// chunk. The returned slice is a copy.
func (m *Manager) EntitiesInChunk(coord worldmap.ChunkCoord) []worldgen.EntityDescriptor {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	record, ok := m.records[coord]
	if !ok || len(record.descriptors) == 0 {
		return nil
	}
	descriptors := make([]worldgen.EntityDescriptor, len(record.descriptors))
	copy(descriptors, record.descriptors)
	return descriptors
}

// OwnerOf returns the chunk that owns a live entity ID.
func (m *Manager) OwnerOf(entityID int64) (worldmap.ChunkCoord, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	coord, ok := m.owners[entityID]
	return coord, ok
}

// LoadedChunks lists every coordinate currently at full or low detail.
func (m *Manager) LoadedChunks() []worldmap.ChunkCoord {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	coords := make([]worldmap.ChunkCoord, 0, len(m.records))
	for coord, record := range m.records {
		if record.state == StateFullDetail || record.state == StateLowDetail {
			coords = append(coords, coord)
		}
	}
	return coords
}

// Export snapshots every tracked chunk for persistence.
func (m *Manager) Export() []ChunkExport {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	exports := make([]ChunkExport, 0, len(m.records))
	for _, record := range m.records {
		export := ChunkExport{
			Coord:      record.coord,
			State:      record.state.String(),
			Background: record.background,
		}
		if len(record.descriptors) > 0 {
			export.Entities = make([]worldgen.EntityDescriptor, len(record.descriptors))
			copy(export.Entities, record.descriptors)
		}
		exports = append(exports, export)
	}
	return exports
}

// Stats summarizes manager state for the admin surface.
func (m *Manager) Stats() map[string]any {
	m.queueMu.Lock()
	queued := m.queue.Len()
	m.queueMu.Unlock()
	m.resultsMu.Lock()
	pending := len(m.results)
	m.resultsMu.Unlock()

	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	loaded := 0
	for _, record := range m.records {
		if record.state == StateFullDetail || record.state == StateLowDetail {
			loaded++
		}
	}
	return map[string]any{
		"records":         len(m.records),
		"loaded":          loaded,
		"queued_tasks":    queued,
		"pending_results": pending,
		"live_entities":   len(m.owners),
		"player_chunk":    m.playerChunk.String(),
		"epoch":           m.epoch.Load(),
	}
}
