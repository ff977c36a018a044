package worldgen

import (
	"math"

	"github.com/stardrift/server/internal/content"
	"github.com/stardrift/server/internal/seedrand"
	"github.com/stardrift/server/internal/worldmap"
)

// DetailLevel selects how much of a chunk gets generated.
type DetailLevel int

const (
	// LowDetail produces background parameters only. Low-detail chunks
	// exist to pre-render distant space cheaply; they carry no entities.
	LowDetail DetailLevel = iota
	// FullDetail produces background parameters plus entity placements.
	FullDetail
)

// String implements fmt.Stringer for logging.
func (d DetailLevel) String() string {
	if d == FullDetail {
		return "full"
	}
	return "low"
}

// Sub-ID channels under a chunk's object ID. Each deterministic draw for a
// chunk uses its own channel so adding a draw never shifts the others.
const (
	subBackgroundPalette = 1
	subEntityCount       = 2
)

// Sub-ID channels under an entity's object ID.
const (
	subEntityType = 1
	subPositionX  = 2
	subPositionY  = 3
	subRotation   = 4
	subScale      = 5
)

// backgroundNoiseID keys the shared background-density noise field. One
// field for the whole world keeps density continuous across chunk seams.
const backgroundNoiseID = 77

// entityIDStride spaces per-entity IDs under their chunk ID.
const entityIDStride = 100

// BackgroundParams describes a chunk's backdrop: a smooth density sampled
// from the world noise field and a palette variant index.
type BackgroundParams struct {
	Density float64 `json:"density"`
	Palette int     `json:"palette"`
}

// EntityDescriptor is the deterministic, serializable description of one
// entity placement. Identical (seed, coord, chunkSize, detail) inputs always
// produce identical descriptors.
type EntityDescriptor struct {
	EntityID int64          `json:"entity_id"`
	TypeTag  string         `json:"type_tag"`
	Position worldmap.Point `json:"position"`
	Rotation float64        `json:"rotation"`
	Scale    float64        `json:"scale"`
}

// ChunkData is the full generated description of one chunk.
type ChunkData struct {
	Coord      worldmap.ChunkCoord `json:"coord"`
	ChunkID    int64               `json:"chunk_id"`
	Detail     DetailLevel         `json:"detail"`
	Background BackgroundParams    `json:"background"`
	Entities   []EntityDescriptor  `json:"entities,omitempty"`
}

// Generator produces deterministic chunk content from the world seed. It is
// stateless beyond its collaborators and safe to call from worker
// goroutines concurrently; it never touches streaming state.
type Generator struct {
	random  *seedrand.Service
	catalog *content.Catalog
}

// NewGenerator builds a generator over the given random service and content
// catalog. A nil catalog falls back to the built-in default.
func NewGenerator(random *seedrand.Service, catalog *content.Catalog) *Generator {
	if catalog == nil {
		catalog = content.Default()
	}
	return &Generator{random: random, catalog: catalog}
}

// Generate produces the content description for a chunk. All randomization
// is keyed from the chunk's derived object ID, so regeneration under the
// same seed is exact regardless of call order.
func (g *Generator) Generate(coord worldmap.ChunkCoord, chunkSize float64, detail DetailLevel) ChunkData {
	if chunkSize <= 0 {
		chunkSize = worldmap.DefaultChunkSize
	}
	chunkID := worldmap.ChunkID(coord)
	center := worldmap.ChunkToWorldCenter(coord, chunkSize)

	data := ChunkData{
		Coord:   coord,
		ChunkID: chunkID,
		Detail:  detail,
		Background: BackgroundParams{
			// Noise keeps density continuous between neighbouring chunks;
			// remap [-1,1] to [0,1].
			Density: (g.random.Noise2D(center.X, center.Y, chunkSize*4, 3, backgroundNoiseID) + 1) / 2,
			Palette: int(g.random.Int(chunkID, subBackgroundPalette, 0, 3)),
		},
	}
	if detail == LowDetail {
		return data
	}

	origin := worldmap.ChunkOrigin(coord, chunkSize)
	weights := g.catalog.Weights()
	count := g.random.Int(chunkID, subEntityCount,
		int64(g.catalog.MinEntitiesPerChunk), int64(g.catalog.MaxEntitiesPerChunk))

	data.Entities = make([]EntityDescriptor, 0, count)
	for i := int64(0); i < count; i++ {
		entityID := chunkID + i*entityIDStride

		typeIndex := g.random.WeightedIndex(entityID, subEntityType, weights)
		if typeIndex < 0 {
			continue
		}
		entityType := g.catalog.Types[typeIndex]

		data.Entities = append(data.Entities, EntityDescriptor{
			EntityID: entityID,
			TypeTag:  entityType.Tag,
			Position: worldmap.Point{
				X: origin.X + g.random.Float(entityID, subPositionX, 0, chunkSize),
				Y: origin.Y + g.random.Float(entityID, subPositionY, 0, chunkSize),
			},
			Rotation: g.random.Float(entityID, subRotation, 0, 2*math.Pi),
			Scale:    g.random.Float(entityID, subScale, entityType.MinScale, entityType.MaxScale),
		})
	}
	return data
}
