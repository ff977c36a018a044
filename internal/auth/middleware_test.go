package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stardrift/server/internal/config"
)

func testAuthConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "test_jwt_secret_key_32_bytes_long!!",
			RefreshSecret:     "test_refresh_secret_key_32_bytes_long!!",
			JWTExpiration:     15 * time.Minute,
			RefreshExpiration: 7 * 24 * time.Hour,
			BCryptCost:        4,
		},
	}
}

func newMiddlewareHandlers(t *testing.T) *AuthHandlers {
	t.Helper()
	cfg := testAuthConfig()
	return NewAuthHandlers(nil, NewJWTService(cfg), NewPasswordService(cfg))
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	handlers := newMiddlewareHandlers(t)

	token, err := handlers.jwtService.GenerateAccessToken(7, "pilot", "player")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	var gotUserID int64
	var gotUsername, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserID(r)
		gotUsername, _ = GetUsername(r)
		gotRole, _ = GetRole(r)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handlers.AuthMiddleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotUserID != 7 {
		t.Errorf("Expected user ID 7 in context, got %d", gotUserID)
	}
	if gotUsername != "pilot" {
		t.Errorf("Expected username 'pilot' in context, got %q", gotUsername)
	}
	if gotRole != "player" {
		t.Errorf("Expected role 'player' in context, got %q", gotRole)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	handlers := newMiddlewareHandlers(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached without a token")
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	w := httptest.NewRecorder()
	handlers.AuthMiddleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	handlers := newMiddlewareHandlers(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached with a malformed header")
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "NotBearer token")
	w := httptest.NewRecorder()
	handlers.AuthMiddleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_GarbageToken(t *testing.T) {
	handlers := newMiddlewareHandlers(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be reached with an invalid token")
	})

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	handlers.AuthMiddleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handlers := newMiddlewareHandlers(t)

	adminOnly := handlers.AuthMiddleware(handlers.RequireRole("admin")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	playerToken, err := handlers.jwtService.GenerateAccessToken(1, "pilot", "player")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}
	adminToken, err := handlers.jwtService.GenerateAccessToken(2, "overseer", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+playerToken)
	w := httptest.NewRecorder()
	adminOnly.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for player role, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	adminOnly.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 for admin role, got %d", w.Code)
	}
}
