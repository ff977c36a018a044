package api

import (
	"net/http"

	"github.com/stardrift/server/internal/auth"
	"github.com/stardrift/server/internal/config"
	"github.com/stardrift/server/internal/database"
)

// SetupAuthRoutes sets up authentication routes with rate limiting
func SetupAuthRoutes(mux *http.ServeMux, players *database.PlayerStorage, cfg *config.Config) {
	// Create services
	jwtService := auth.NewJWTService(cfg)
	passwordService := auth.NewPasswordService(cfg)
	authHandlers := auth.NewAuthHandlers(players, jwtService, passwordService)

	authRateLimit := AuthRateLimit()

	// Register routes with rate limiting
	mux.Handle("/api/auth/register", authRateLimit(http.HandlerFunc(authHandlers.Register)))
	mux.Handle("/api/auth/login", authRateLimit(http.HandlerFunc(authHandlers.Login)))
	mux.Handle("/api/auth/refresh", authRateLimit(http.HandlerFunc(authHandlers.Refresh)))
	mux.Handle("/api/auth/logout", authRateLimit(http.HandlerFunc(authHandlers.Logout)))
}

// SecurityHeadersMiddleware wraps auth.SecurityHeadersMiddleware for use in main
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return auth.SecurityHeadersMiddleware(next)
}
