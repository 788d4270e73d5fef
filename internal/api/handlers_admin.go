// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"net/http"
)

// AdminStats returns entity counts plus live gateway numbers. Admin only.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Counts(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	stats.OnlineUsers = len(h.hub.OnlineUserIDs())
	stats.Connections = h.hub.ConnectionCount()

	respondSuccess(w, http.StatusOK, stats)
}

// AdminDeleteUser removes an account. Admin only; admins cannot delete
// themselves.
func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if userID == h.claims(r).UserID {
		respondError(w, http.StatusConflict, "INVALID_STATE", "Cannot delete your own account", nil)
		return
	}

	if err := h.store.DeleteUser(r.Context(), userID); err != nil {
		respondDomainError(w, err)
		return
	}

	h.security.LogUserDeleted(h.claims(r).UserID, userID, r.RemoteAddr)
	respondSuccess(w, http.StatusOK, nil)
}
