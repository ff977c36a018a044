package auth

import (
	"strings"
	"testing"

	"github.com/stardrift/server/internal/config"
)

func TestHashAndVerifyPassword(t *testing.T) {
	service := NewPasswordService(testAuthConfig())

	password := "Starlane7!"
	hash, err := service.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if hash == "" || hash == password {
		t.Fatalf("HashPassword() returned unusable hash %q", hash)
	}

	if !service.VerifyPassword(password, hash) {
		t.Error("VerifyPassword() rejected the correct password")
	}
	if service.VerifyPassword("Starlane8!", hash) {
		t.Error("VerifyPassword() accepted a wrong password")
	}

	// Salted hashing: the same password never produces the same hash twice.
	second, err := service.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if second == hash {
		t.Error("Two hashes of the same password are identical")
	}
}

func TestHashPasswordEnforcesPolicy(t *testing.T) {
	service := NewPasswordService(testAuthConfig())

	hash, err := service.HashPassword("weak")
	if err == nil {
		t.Error("HashPassword() accepted a password below the policy")
	}
	if hash != "" {
		t.Errorf("HashPassword() returned a hash %q for a rejected password", hash)
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	service := NewPasswordService(testAuthConfig())

	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "Starlane7!", ""},
		{"too short", "Sl7!", "at least 8"},
		{"too long", strings.Repeat("Aa1!", 19), "at most 72"},
		{"no uppercase", "starlane7!", "an uppercase letter"},
		{"no lowercase", "STARLANE7!", "a lowercase letter"},
		{"no digit", "Starlane!!", "a digit"},
		{"no symbol", "Starlane77", "a symbol"},
		{"only lowercase", "starlanes", "an uppercase letter, a digit, a symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidatePasswordStrength(tt.password)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidatePasswordStrength(%q) = %v, want nil", tt.password, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidatePasswordStrength(%q) = nil, want error containing %q", tt.password, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCostClampedToBcryptBounds(t *testing.T) {
	cfg := &config.Config{Auth: config.AuthConfig{BCryptCost: 99}}
	service := NewPasswordService(cfg)

	// bcrypt itself errors for cost 99; a successful hash proves the
	// service clamped it.
	hash, err := service.HashPassword("Starlane7!")
	if err != nil {
		t.Fatalf("HashPassword() with out-of-range cost failed: %v", err)
	}
	if !service.VerifyPassword("Starlane7!", hash) {
		t.Error("VerifyPassword() rejected hash produced with clamped cost")
	}
}
