package api

import (
	"net/http"

	"github.com/stardrift/server/internal/auth"
	"github.com/stardrift/server/internal/config"
	"github.com/stardrift/server/internal/database"
	"github.com/stardrift/server/internal/seedrand"
	"github.com/stardrift/server/internal/streaming"
)

// SetupWorldRoutes registers the world query and position-report routes.
func SetupWorldRoutes(mux *http.ServeMux, cfg *config.Config, world *streaming.Manager,
	random *seedrand.Service, tracker *streaming.TrackedPosition, players *database.PlayerStorage) {

	handlers := NewWorldHandlers(cfg, world, random, tracker, players)

	jwtService := auth.NewJWTService(cfg)
	passwordService := auth.NewPasswordService(cfg)
	authHandlers := auth.NewAuthHandlers(players, jwtService, passwordService)

	// World queries are cheap reads; position reports arrive continuously
	// while a client moves.
	userRateLimit := WorldRateLimit()

	worldHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/world":
			handlers.GetWorldInfo(w, r)
		case r.Method == http.MethodGet && r.URL.Path == "/api/world/chunk":
			handlers.GetChunk(w, r)
		case r.Method == http.MethodGet && r.URL.Path == "/api/world/chunks":
			handlers.GetLoadedChunks(w, r)
		case r.Method == http.MethodPost && r.URL.Path == "/api/world/position":
			handlers.ReportPosition(w, r)
		case r.Method == http.MethodGet && r.URL.Path == "/api/world/random/cache":
			handlers.GetRandomCacheStats(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	authenticated := authHandlers.AuthMiddleware(worldHandler)
	rateLimited := userRateLimit(authenticated)

	mux.Handle("/api/world", rateLimited)
	mux.Handle("/api/world/", rateLimited)
}
