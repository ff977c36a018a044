package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stardrift/server/internal/config"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	service := NewJWTService(testAuthConfig())

	token, err := service.GenerateAccessToken(42, "pilot", "player")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}

	claims, err := service.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() failed: %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Username != "pilot" {
		t.Errorf("Username = %q, want %q", claims.Username, "pilot")
	}
	if claims.Role != "player" {
		t.Errorf("Role = %q, want %q", claims.Role, "player")
	}
	if claims.Issuer != TokenIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, TokenIssuer)
	}
	if claims.Subject != "42" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "42")
	}
	if claims.ID == "" {
		t.Error("Expected a non-empty token ID")
	}
}

func TestRefreshTokenCarriesOnlyPlayerID(t *testing.T) {
	service := NewJWTService(testAuthConfig())

	token, err := service.GenerateRefreshToken(42)
	if err != nil {
		t.Fatalf("GenerateRefreshToken() failed: %v", err)
	}

	claims, err := service.ValidateRefreshToken(token)
	if err != nil {
		t.Fatalf("ValidateRefreshToken() failed: %v", err)
	}

	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	// Role and username come from storage at redemption time, never from
	// the refresh token itself.
	if claims.Username != "" || claims.Role != "" {
		t.Errorf("Refresh token leaked identity: username=%q role=%q", claims.Username, claims.Role)
	}
}

func TestTokenUseSeparation(t *testing.T) {
	// With identical secrets the signature alone cannot tell an access
	// token from a refresh token; the use claim must.
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:         "shared_secret_key_32_bytes_long!!!!",
			RefreshSecret:     "shared_secret_key_32_bytes_long!!!!",
			JWTExpiration:     15 * time.Minute,
			RefreshExpiration: 7 * 24 * time.Hour,
		},
	}
	service := NewJWTService(cfg)

	accessToken, err := service.GenerateAccessToken(1, "pilot", "player")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}
	refreshToken, err := service.GenerateRefreshToken(1)
	if err != nil {
		t.Fatalf("GenerateRefreshToken() failed: %v", err)
	}

	if _, err := service.ValidateRefreshToken(accessToken); err == nil {
		t.Error("Access token accepted as refresh token")
	}
	if _, err := service.ValidateAccessToken(refreshToken); err == nil {
		t.Error("Refresh token accepted as access token")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	service := NewJWTService(testAuthConfig())

	other := NewJWTService(&config.Config{
		Auth: config.AuthConfig{
			JWTSecret:     "a_completely_different_secret_key!!",
			RefreshSecret: "another_completely_different_key!!!",
			JWTExpiration: 15 * time.Minute,
		},
	})

	token, err := other.GenerateAccessToken(1, "pilot", "player")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}
	if _, err := service.ValidateAccessToken(token); err == nil {
		t.Error("Token signed with a foreign secret was accepted")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	cfg := testAuthConfig()
	cfg.Auth.JWTExpiration = -1 * time.Minute
	service := NewJWTService(cfg)

	token, err := service.GenerateAccessToken(1, "pilot", "player")
	if err != nil {
		t.Fatalf("GenerateAccessToken() failed: %v", err)
	}
	if _, err := service.ValidateAccessToken(token); err == nil {
		t.Error("Expired token was accepted")
	}
}

func TestValidateRejectsForeignIssuer(t *testing.T) {
	cfg := testAuthConfig()
	service := NewJWTService(cfg)

	// Correct secret and use claim, wrong issuer.
	forged := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "some-other-server",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID:   1,
		TokenUse: tokenUseAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).
		SignedString([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		t.Fatalf("Failed to sign forged token: %v", err)
	}

	if _, err := service.ValidateAccessToken(token); err == nil {
		t.Error("Token with a foreign issuer was accepted")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	service := NewJWTService(testAuthConfig())

	if _, err := service.ValidateAccessToken("not.a.jwt"); err == nil {
		t.Error("Garbage access token was accepted")
	}
	if _, err := service.ValidateRefreshToken(""); err == nil {
		t.Error("Empty refresh token was accepted")
	}
}

func TestGetTokenExpiration(t *testing.T) {
	service := NewJWTService(testAuthConfig())
	if got := service.GetTokenExpiration(); got != 15*time.Minute {
		t.Errorf("GetTokenExpiration() = %v, want 15m", got)
	}
}
