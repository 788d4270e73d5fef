// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/models"
)

type contextKey string

// ClaimsContextKey carries the authenticated user's claims in the request
// context.
const ClaimsContextKey contextKey = "claims"

// TokenCookieName is the HTTP-only cookie used as a fallback token source,
// primarily for the WebSocket upgrade where custom headers are unavailable.
const TokenCookieName = "flixchat_token"

// Middleware enforces authentication on API routes.
type Middleware struct {
	jwtManager *JWTManager
}

// NewMiddleware creates authentication middleware backed by jwtManager.
func NewMiddleware(jwtManager *JWTManager) *Middleware {
	return &Middleware{jwtManager: jwtManager}
}

// Authenticate requires a valid session token. The token is read from the
// Authorization Bearer header first, then from the flixchat_token cookie.
// Valid claims are placed in the request context.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractToken(r)
		if tokenString == "" {
			respondUnauthorized(w, "Authentication required")
			return
		}

		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Token validation failed")
			respondUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin requires the authenticated user to hold the admin role. Must
// run after Authenticate.
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			respondUnauthorized(w, "Authentication required")
			return
		}
		if claims.Role != models.RoleAdmin {
			respondForbidden(w, "Admin access required")
			return
		}
		next(w, r)
	}
}

// ClaimsFromContext returns the authenticated claims, or nil when the
// request is unauthenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsContextKey).(*Claims)
	return claims
}

// extractToken pulls the session token from the Authorization header or the
// session cookie.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func respondForbidden(w http.ResponseWriter, message string) {
	respondAuthError(w, http.StatusForbidden, "PERMISSION_DENIED", message)
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode auth error response")
	}
}
