// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package auth

import (
	"testing"
	"time"

	"github.com/flixchat/flixchat/internal/config"
	"github.com/flixchat/flixchat/internal/models"
)

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	return m
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager(&config.SecurityConfig{SessionTimeout: time.Hour})
	if err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	m := newTestJWTManager(t)

	token, expiresAt, err := m.GenerateToken(42, "alice", models.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) < 59*time.Minute {
		t.Errorf("expected expiry about 1h out, got %v", expiresAt)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("expected user ID 42, got %d", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("expected username alice, got %q", claims.Username)
	}
	if claims.Role != models.RoleUser {
		t.Errorf("expected role user, got %q", claims.Role)
	}
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	m := newTestJWTManager(t)

	token, _, err := m.GenerateToken(1, "alice", models.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := m.ValidateToken(token + "x"); err == nil {
		t.Error("expected error for tampered token")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	m := newTestJWTManager(t)
	other, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "ffffffffffffffffffffffffffffffff",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, _, err := other.GenerateToken(1, "alice", models.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := m.ValidateToken(token); err == nil {
		t.Error("expected error for token signed with different secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	m, err := NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		SessionTimeout: -time.Minute,
	})
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, _, err := m.GenerateToken(1, "alice", models.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := m.ValidateToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestPasswordHasherRoundTrip(t *testing.T) {
	h := NewPasswordHasher(4) // minimum cost keeps the test fast

	hash, err := h.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "s3cret-password" {
		t.Fatal("hash must not equal plaintext")
	}

	if !h.Verify(hash, "s3cret-password") {
		t.Error("expected matching password to verify")
	}
	if h.Verify(hash, "wrong-password") {
		t.Error("expected mismatched password to fail")
	}
}

func TestPasswordHasherInvalidCostFallsBack(t *testing.T) {
	h := NewPasswordHasher(99)
	if h.cost < 4 || h.cost > 31 {
		t.Errorf("expected cost clamped to valid range, got %d", h.cost)
	}
}
