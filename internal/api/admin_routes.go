package api

import (
	"net/http"
	"strings"

	"github.com/stardrift/server/internal/auth"
	"github.com/stardrift/server/internal/config"
	"github.com/stardrift/server/internal/database"
	"github.com/stardrift/server/internal/performance"
	"github.com/stardrift/server/internal/seedrand"
	"github.com/stardrift/server/internal/streaming"
)

// SetupAdminRoutes registers admin management routes.
func SetupAdminRoutes(mux *http.ServeMux, cfg *config.Config, world *streaming.Manager,
	random *seedrand.Service, profiler *performance.Profiler, players *database.PlayerStorage,
	saveSnapshot SnapshotFunc) {

	handlers := NewAdminHandlers(cfg, world, random, profiler, saveSnapshot)

	jwtService := auth.NewJWTService(cfg)
	passwordService := auth.NewPasswordService(cfg)
	authHandlers := auth.NewAuthHandlers(players, jwtService, passwordService)

	userRateLimit := AdminRateLimit()

	adminHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/admin")
		path = strings.Trim(path, "/")

		switch {
		case r.Method == http.MethodGet && path == "stats":
			handlers.GetWorldStats(w, r)
		case r.Method == http.MethodGet && path == "profiler":
			handlers.GetProfilerReport(w, r)
		case r.Method == http.MethodPost && path == "profiler/reset":
			handlers.ResetProfiler(w, r)
		case r.Method == http.MethodPost && path == "seed":
			handlers.ChangeSeed(w, r)
		case r.Method == http.MethodPost && path == "snapshot":
			handlers.SaveSnapshot(w, r)
		default:
			http.NotFound(w, r)
		}
	})

	authenticated := authHandlers.AuthMiddleware(authHandlers.RequireRole("admin")(adminHandler))
	rateLimited := userRateLimit(authenticated)

	mux.Handle("/api/admin/", rateLimited)
	mux.Handle("/api/admin", rateLimited)
}
