package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so no other package can install or shadow the
// claims entry; handlers read identity through the Get helpers below.
type contextKey struct{}

var claimsContextKey contextKey

// ContextWithClaims returns a context carrying validated token claims.
// AuthMiddleware installs it on every authenticated request; tests use it
// to stand in for the middleware.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// AuthMiddleware validates the bearer token and installs its claims on the
// request context.
func (h *AuthHandlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.sendError(w, http.StatusUnauthorized, "MissingToken", "Bearer token required")
			return
		}

		claims, err := h.jwtService.ValidateAccessToken(token)
		if err != nil {
			h.sendError(w, http.StatusUnauthorized, "InvalidToken", "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireRole gates a handler to requests whose token carries one of the
// given roles. Must be wrapped by AuthMiddleware.
func (h *AuthHandlers) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := GetClaims(r); ok {
				for _, role := range roles {
					if claims.Role == role {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			h.sendError(w, http.StatusForbidden, "InsufficientPermissions", "Insufficient permissions")
		})
	}
}

// bearerToken extracts the token from an "Authorization: Bearer" header,
// returning "" when the header is missing or malformed.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// GetClaims returns the validated token claims installed by AuthMiddleware.
func GetClaims(r *http.Request) (*Claims, bool) {
	claims, ok := r.Context().Value(claimsContextKey).(*Claims)
	return claims, ok
}

// GetUserID returns the authenticated player's ID from the request context.
func GetUserID(r *http.Request) (int64, bool) {
	claims, ok := GetClaims(r)
	if !ok {
		return 0, false
	}
	return claims.UserID, true
}

// GetUsername returns the authenticated player's username from the request
// context.
func GetUsername(r *http.Request) (string, bool) {
	claims, ok := GetClaims(r)
	if !ok {
		return "", false
	}
	return claims.Username, true
}

// GetRole returns the authenticated player's role from the request context.
func GetRole(r *http.Request) (string, bool) {
	claims, ok := GetClaims(r)
	if !ok {
		return "", false
	}
	return claims.Role, true
}
