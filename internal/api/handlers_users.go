// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"net/http"

	"github.com/flixchat/flixchat/internal/models"
)

// ListUsers returns all users with live presence applied: a user with at
// least one open connection reports online regardless of the stored status
// (unless they set a manual status like away).
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, h.withLivePresence(u))
	}
	respondSuccess(w, http.StatusOK, out)
}

// GetUser returns one user by ID.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, h.withLivePresence(*user))
}

// UpdateMe updates the authenticated user's profile fields.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.store.UpdateUser(r.Context(), h.claims(r).UserID, func(u *models.User) {
		if req.FullName != "" {
			u.FullName = req.FullName
		}
		if req.Bio != "" {
			u.Bio = req.Bio
		}
		if req.AvatarURL != "" {
			u.AvatarURL = req.AvatarURL
		}
		if req.CoverURL != "" {
			u.CoverURL = req.CoverURL
		}
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, user.Public())
}

// OnlineUsers returns the IDs of users with at least one live connection.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.hub.OnlineUserIDs())
}

// withLivePresence overlays gateway presence onto a stored user record.
func (h *Handler) withLivePresence(u models.User) models.User {
	u = u.Public()
	if !h.hub.IsOnline(u.ID) {
		u.Status = models.StatusOffline
	} else if u.Status == models.StatusOffline {
		u.Status = models.StatusOnline
	}
	return u
}
