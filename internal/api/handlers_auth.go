// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flixchat/flixchat/internal/auth"
	"github.com/flixchat/flixchat/internal/models"
	"github.com/flixchat/flixchat/internal/store"
)

// Register creates an account and returns a session token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	hashed, err := h.hasher.Hash(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process password", err)
		return
	}

	user, err := h.store.CreateUser(r.Context(), &models.User{
		Username: req.Username,
		Password: hashed,
		FullName: req.FullName,
		Role:     models.RoleUser,
		Status:   models.StatusOffline,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.security.LogRegistration(user.ID, user.Username, r.RemoteAddr, false)
	h.respondWithSession(w, user)
}

// Login authenticates a username/password pair. Invalid username and
// invalid password return the same response so accounts cannot be
// enumerated.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.security.LogLoginFailure(req.Username, r.RemoteAddr, r.UserAgent(), "unknown username")
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid username or password", nil)
			return
		}
		respondDomainError(w, err)
		return
	}

	if !h.hasher.Verify(user.Password, req.Password) {
		h.security.LogLoginFailure(req.Username, r.RemoteAddr, r.UserAgent(), "wrong password")
		respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "Invalid username or password", nil)
		return
	}

	h.security.LogLoginSuccess(user.ID, user.Username, r.RemoteAddr, r.UserAgent())
	h.respondWithSession(w, user)
}

// GuestLogin creates an ephemeral guest account. The username is the
// display name plus a random suffix, retried on the unlikely collision.
func (h *Handler) GuestLogin(w http.ResponseWriter, r *http.Request) {
	var req models.GuestLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var user *models.User
	for attempt := 0; attempt < 3; attempt++ {
		created, err := h.store.CreateUser(r.Context(), &models.User{
			Username: guestUsername(req.FullName),
			Password: "",
			FullName: req.FullName,
			Role:     models.RoleUser,
			Status:   models.StatusOffline,
			IsGuest:  true,
		})
		if err == nil {
			user = created
			break
		}
		if !errors.Is(err, store.ErrUsernameTaken) {
			respondDomainError(w, err)
			return
		}
	}
	if user == nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to allocate guest account", nil)
		return
	}

	h.security.LogRegistration(user.ID, user.Username, r.RemoteAddr, true)
	h.respondWithSession(w, user)
}

// Logout clears the session cookie. Tokens are stateless, so the server
// keeps no session to destroy.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondSuccess(w, http.StatusOK, nil)
}

// Me returns the authenticated user's record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(r.Context(), h.claims(r).UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, user.Public())
}

// respondWithSession issues a token, sets the session cookie, and returns
// the login response.
func (h *Handler) respondWithSession(w http.ResponseWriter, user *models.User) {
	token, expiresAt, err := h.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respondSuccess(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Public(),
	})
}

// guestUsername derives a unique-ish username from a display name.
func guestUsername(fullName string) string {
	base := strings.ToLower(strings.Join(strings.Fields(fullName), ""))
	if len(base) > 20 {
		base = base[:20]
	}
	if base == "" {
		base = "guest"
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// Fall back to a time-derived suffix; uniqueness is enforced by
		// the store either way.
		return fmt.Sprintf("%s_%d", base, time.Now().UnixNano()%100000000)
	}
	return fmt.Sprintf("%s_%s", base, hex.EncodeToString(suffix))
}
