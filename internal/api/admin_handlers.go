package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/stardrift/server/internal/config"
	"github.com/stardrift/server/internal/performance"
	"github.com/stardrift/server/internal/seedrand"
	"github.com/stardrift/server/internal/streaming"
)

// SnapshotFunc captures the current world into a persisted snapshot and
// returns where it was written.
type SnapshotFunc func() (string, error)

// AdminHandlers serves the management surface: world stats, profiling data,
// seed changes and snapshot triggers.
type AdminHandlers struct {
	cfg          *config.Config
	world        *streaming.Manager
	random       *seedrand.Service
	profiler     *performance.Profiler
	saveSnapshot SnapshotFunc
}

// NewAdminHandlers creates a new AdminHandlers instance. saveSnapshot may be
// nil when snapshot persistence is not configured.
func NewAdminHandlers(cfg *config.Config, world *streaming.Manager, random *seedrand.Service,
	profiler *performance.Profiler, saveSnapshot SnapshotFunc) *AdminHandlers {
	return &AdminHandlers{
		cfg:          cfg,
		world:        world,
		random:       random,
		profiler:     profiler,
		saveSnapshot: saveSnapshot,
	}
}

// GetWorldStats handles GET /api/admin/stats
func (h *AdminHandlers) GetWorldStats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.world.Stats())
}

// GetProfilerReport handles GET /api/admin/profiler
func (h *AdminHandlers) GetProfilerReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.profiler.JSONReport()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to build profiler report")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(report); err != nil {
		log.Printf("[API] Failed to write profiler report: %v", err)
	}
}

// ResetProfiler handles POST /api/admin/profiler/reset
func (h *AdminHandlers) ResetProfiler(w http.ResponseWriter, r *http.Request) {
	h.profiler.Reset()
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// ChangeSeed handles POST /api/admin/seed
// Changing the seed discards every loaded chunk; the world rebuilds around
// the observer on the following ticks.
func (h *AdminHandlers) ChangeSeed(w http.ResponseWriter, r *http.Request) {
	var req SeedChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid seed change request")
		return
	}

	oldSeed := h.random.Seed()
	if req.Seed == oldSeed {
		respondWithJSON(w, http.StatusOK, map[string]any{"seed": oldSeed, "changed": false})
		return
	}

	h.random.SetSeed(req.Seed)
	log.Printf("[Admin] World seed changed from %d to %d", oldSeed, req.Seed)
	respondWithJSON(w, http.StatusOK, map[string]any{"seed": req.Seed, "changed": true})
}

// SaveSnapshot handles POST /api/admin/snapshot
func (h *AdminHandlers) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.saveSnapshot == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Snapshot persistence is not configured")
		return
	}

	name, err := h.saveSnapshot()
	if err != nil {
		log.Printf("[Admin] Snapshot save failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save snapshot")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"snapshot": name})
}
