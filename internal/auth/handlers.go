package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stardrift/server/internal/database"
)

// AuthHandlers handles authentication HTTP endpoints
type AuthHandlers struct {
	players         *database.PlayerStorage
	jwtService      *JWTService
	passwordService *PasswordService
	validator       *validator.Validate
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(players *database.PlayerStorage, jwtService *JWTService, passwordService *PasswordService) *AuthHandlers {
	return &AuthHandlers{
		players:         players,
		jwtService:      jwtService,
		passwordService: passwordService,
		validator:       validator.New(),
	}
}

// Register handles player registration
// POST /api/auth/register
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	// Validate input
	if err := h.validator.Struct(req); err != nil {
		h.sendValidationError(w, err)
		return
	}

	// Validate password strength
	if err := h.passwordService.ValidatePasswordStrength(req.Password); err != nil {
		h.sendError(w, http.StatusBadRequest, "InvalidPassword", err.Error())
		return
	}

	// Hash password
	passwordHash, err := h.passwordService.HashPassword(req.Password)
	if err != nil {
		log.Printf("[Auth] Error hashing password: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to process password")
		return
	}

	// Create player; uniqueness is enforced by the database constraints
	player, err := h.players.Create(req.Username, req.Email, passwordHash)
	if errors.Is(err, database.ErrUsernameTaken) {
		h.sendError(w, http.StatusConflict, "UsernameExists", "Username already exists")
		return
	}
	if errors.Is(err, database.ErrEmailTaken) {
		h.sendError(w, http.StatusConflict, "EmailExists", "Email already registered")
		return
	}
	if err != nil {
		log.Printf("[Auth] Error creating player: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to create player")
		return
	}

	h.issueTokens(w, http.StatusCreated, player)
}

// Login handles player login
// POST /api/auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	// Validate input
	if err := h.validator.Struct(req); err != nil {
		h.sendValidationError(w, err)
		return
	}

	player, err := h.players.GetByUsername(req.Username)
	if err != nil {
		log.Printf("[Auth] Error querying player: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to authenticate")
		return
	}
	if player == nil || !h.passwordService.VerifyPassword(req.Password, player.PasswordHash) {
		h.sendError(w, http.StatusUnauthorized, "InvalidCredentials", "Invalid username or password")
		return
	}

	if err := h.players.TouchLastLogin(player.ID); err != nil {
		// Login still succeeds; the timestamp is best effort.
		log.Printf("[Auth] Error recording last login: %v", err)
	}

	h.issueTokens(w, http.StatusOK, player)
}

// Refresh handles token refresh
// POST /api/auth/refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	// Get refresh token from Authorization header or body
	var refreshToken string

	// Try Authorization header first
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			refreshToken = parts[1]
		}
	}

	// If not in header, try body
	if refreshToken == "" {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.RefreshToken
		}
	}

	if refreshToken == "" {
		h.sendError(w, http.StatusBadRequest, "InvalidRequest", "Refresh token required")
		return
	}

	// Validate refresh token
	claims, err := h.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "InvalidToken", "Invalid or expired refresh token")
		return
	}

	// Ensure the player still exists before rotating tokens
	player, err := h.players.GetByID(claims.UserID)
	if err != nil {
		log.Printf("[Auth] Error querying player: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to refresh token")
		return
	}
	if player == nil {
		h.sendError(w, http.StatusUnauthorized, "UserNotFound", "Player no longer exists")
		return
	}

	h.issueTokens(w, http.StatusOK, player)
}

// Logout handles player logout
// POST /api/auth/logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, logout is primarily client-side; the client
	// discards its tokens.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Logged out successfully",
	})
}

// Helper methods

// issueTokens generates a fresh access/refresh pair for a player and writes
// the token response.
func (h *AuthHandlers) issueTokens(w http.ResponseWriter, status int, player *database.Player) {
	accessToken, err := h.jwtService.GenerateAccessToken(player.ID, player.Username, player.Role)
	if err != nil {
		log.Printf("[Auth] Error generating access token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate token")
		return
	}

	refreshToken, err := h.jwtService.GenerateRefreshToken(player.ID)
	if err != nil {
		log.Printf("[Auth] Error generating refresh token: %v", err)
		h.sendError(w, http.StatusInternalServerError, "InternalError", "Failed to generate refresh token")
		return
	}

	h.sendTokenResponse(w, status, TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(h.jwtService.GetTokenExpiration()),
		UserID:       player.ID,
		Username:     player.Username,
		Role:         player.Role,
	})
}

func (h *AuthHandlers) sendTokenResponse(w http.ResponseWriter, status int, response TokenResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func (h *AuthHandlers) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
		Code:    code,
	})
}

func (h *AuthHandlers) sendValidationError(w http.ResponseWriter, err error) {
	var validationErrors []string
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			validationErrors = append(validationErrors, fmt.Sprintf("%s: %s", fe.Field(), getValidationMessage(fe)))
		}
	}

	h.sendError(w, http.StatusBadRequest, "ValidationError", strings.Join(validationErrors, "; "))
}

func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "alphanum":
		return "must contain only alphanumeric characters"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
