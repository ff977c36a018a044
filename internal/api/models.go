package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/stardrift/server/internal/worldgen"
	"github.com/stardrift/server/internal/worldmap"
)

// WorldInfoResponse describes the world to clients.
type WorldInfoResponse struct {
	Seed         int64               `json:"seed"`
	ChunkSize    float64             `json:"chunk_size"`
	PlayerChunk  worldmap.ChunkCoord `json:"player_chunk"`
	LoadedChunks int                 `json:"loaded_chunks"`
}

// ChunkResponse is the query result for one chunk coordinate.
type ChunkResponse struct {
	Coord      worldmap.ChunkCoord         `json:"coord"`
	ChunkID    int64                       `json:"chunk_id"`
	State      string                      `json:"state"`
	Loaded     bool                        `json:"loaded"`
	Entities   []worldgen.EntityDescriptor `json:"entities,omitempty"`
}

// LoadedChunksResponse lists every currently loaded coordinate.
type LoadedChunksResponse struct {
	Count  int                   `json:"count"`
	Chunks []worldmap.ChunkCoord `json:"chunks"`
}

// PositionReport is a client position update.
type PositionReport struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SeedChangeRequest asks the server to rebuild the world under a new seed.
type SeedChangeRequest struct {
	Seed int64 `json:"seed"`
}

// respondWithJSON writes a JSON response with the given status code.
func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

// respondWithError writes a JSON error response.
func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}
