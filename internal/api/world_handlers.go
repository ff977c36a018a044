package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/stardrift/server/internal/auth"
	"github.com/stardrift/server/internal/config"
	"github.com/stardrift/server/internal/database"
	"github.com/stardrift/server/internal/seedrand"
	"github.com/stardrift/server/internal/streaming"
	"github.com/stardrift/server/internal/worldmap"
)

// WorldHandlers serves the read-only world query surface plus client
// position reports.
type WorldHandlers struct {
	cfg     *config.Config
	world   *streaming.Manager
	random  *seedrand.Service
	tracker *streaming.TrackedPosition
	players *database.PlayerStorage
}

// NewWorldHandlers creates a new WorldHandlers instance. players may be nil
// when running without a database; position reports then skip persistence.
func NewWorldHandlers(cfg *config.Config, world *streaming.Manager, random *seedrand.Service,
	tracker *streaming.TrackedPosition, players *database.PlayerStorage) *WorldHandlers {
	return &WorldHandlers{
		cfg:     cfg,
		world:   world,
		random:  random,
		tracker: tracker,
		players: players,
	}
}

// GetWorldInfo handles GET /api/world
func (h *WorldHandlers) GetWorldInfo(w http.ResponseWriter, r *http.Request) {
	position := h.tracker.Position()
	respondWithJSON(w, http.StatusOK, WorldInfoResponse{
		Seed:         h.random.Seed(),
		ChunkSize:    h.cfg.World.ChunkSize,
		PlayerChunk:  worldmap.WorldToChunk(position, h.cfg.World.ChunkSize),
		LoadedChunks: len(h.world.LoadedChunks()),
	})
}

// GetChunk handles GET /api/world/chunk?x={x}&y={y}
// Returns the chunk's streaming state and, when loaded at full detail, its
// entity descriptors.
func (h *WorldHandlers) GetChunk(w http.ResponseWriter, r *http.Request) {
	coord, ok := parseChunkCoord(w, r)
	if !ok {
		return
	}

	state := h.world.State(coord)
	respondWithJSON(w, http.StatusOK, ChunkResponse{
		Coord:    coord,
		ChunkID:  worldmap.ChunkID(coord),
		State:    state.String(),
		Loaded:   state == streaming.StateFullDetail || state == streaming.StateLowDetail,
		Entities: h.world.EntitiesInChunk(coord),
	})
}

// GetLoadedChunks handles GET /api/world/chunks
func (h *WorldHandlers) GetLoadedChunks(w http.ResponseWriter, r *http.Request) {
	chunks := h.world.LoadedChunks()
	respondWithJSON(w, http.StatusOK, LoadedChunksResponse{
		Count:  len(chunks),
		Chunks: chunks,
	})
}

// ReportPosition handles POST /api/world/position
// The reported position drives the streaming window and is persisted as the
// player's resume point.
func (h *WorldHandlers) ReportPosition(w http.ResponseWriter, r *http.Request) {
	var report PositionReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid position report")
		return
	}

	position := worldmap.Point{X: report.X, Y: report.Y}
	h.tracker.MoveTo(position)

	if h.players != nil {
		if userID, ok := auth.GetUserID(r); ok {
			if err := h.players.UpdatePosition(userID, position); err != nil {
				// Streaming already follows the new position; persistence is
				// best effort.
				log.Printf("[API] Failed to persist position for player %d: %v", userID, err)
			}
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"chunk": worldmap.WorldToChunk(position, h.cfg.World.ChunkSize),
	})
}

// GetRandomCacheStats handles GET /api/world/random/cache
func (h *WorldHandlers) GetRandomCacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses, size := h.random.CacheStats()
	respondWithJSON(w, http.StatusOK, map[string]any{
		"hits":   hits,
		"misses": misses,
		"size":   size,
	})
}

// parseChunkCoord reads x/y query parameters.
func parseChunkCoord(w http.ResponseWriter, r *http.Request) (worldmap.ChunkCoord, bool) {
	x, errX := strconv.Atoi(r.URL.Query().Get("x"))
	y, errY := strconv.Atoi(r.URL.Query().Get("y"))
	if errX != nil || errY != nil {
		respondWithError(w, http.StatusBadRequest, "x and y query parameters are required integers")
		return worldmap.ChunkCoord{}, false
	}
	return worldmap.ChunkCoord{X: x, Y: y}, true
}
