package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stardrift/server/internal/config"
)

// TokenIssuer is the iss claim stamped on every token this server signs.
// Validation rejects tokens from any other issuer.
const TokenIssuer = "stardrift-server"

// Token use claim values. Access and refresh tokens are signed with
// separate secrets, and the use claim keeps them apart even when an
// operator configures both secrets to the same value.
const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)

// Claims carries the player identity embedded in a signed token. Role is
// "player" or "admin".
type Claims struct {
	jwt.RegisteredClaims

	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	TokenUse string `json:"token_use"`
}

// JWTService signs and validates the server's access and refresh tokens.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewJWTService creates a JWT service from the auth configuration.
func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		accessSecret:  []byte(cfg.Auth.JWTSecret),
		refreshSecret: []byte(cfg.Auth.RefreshSecret),
		accessExpiry:  cfg.Auth.JWTExpiration,
		refreshExpiry: cfg.Auth.RefreshExpiration,
	}
}

// GenerateAccessToken signs a short-lived token carrying the player's full
// identity for request authentication.
func (s *JWTService) GenerateAccessToken(userID int64, username, role string) (string, error) {
	return s.issue(s.accessSecret, s.accessExpiry, &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		TokenUse: tokenUseAccess,
	})
}

// GenerateRefreshToken signs a long-lived token carrying only the player
// ID. Username and role are re-read from storage when it is redeemed, so a
// role change takes effect at the next refresh.
func (s *JWTService) GenerateRefreshToken(userID int64) (string, error) {
	return s.issue(s.refreshSecret, s.refreshExpiry, &Claims{
		UserID:   userID,
		TokenUse: tokenUseRefresh,
	})
}

func (s *JWTService) issue(secret []byte, expiry time.Duration, claims *Claims) (string, error) {
	tokenID, err := newTokenID()
	if err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}

	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    TokenIssuer,
		Subject:   fmt.Sprintf("%d", claims.UserID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		ID:        tokenID,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateAccessToken validates an access token and returns its claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, s.accessSecret, tokenUseAccess)
}

// ValidateRefreshToken validates a refresh token and returns its claims.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, s.refreshSecret, tokenUseRefresh)
}

func (s *JWTService) validate(tokenString string, secret []byte, use string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenUse != use {
		return nil, fmt.Errorf("token not valid for %s use", use)
	}
	return claims, nil
}

// newTokenID generates the jti claim so individual tokens stay
// distinguishable in logs even for the same player.
func newTokenID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// GetTokenExpiration returns the access token lifetime, used by handlers
// to report expires_at to clients.
func (s *JWTService) GetTokenExpiration() time.Duration {
	return s.accessExpiry
}
