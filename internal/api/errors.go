// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"errors"
	"net/http"

	"github.com/flixchat/flixchat/internal/calls"
	"github.com/flixchat/flixchat/internal/store"
)

// respondDomainError maps domain errors to HTTP responses:
//
//	store.ErrNotFound       -> 404 NOT_FOUND
//	store.ErrUsernameTaken  -> 409 CONFLICT
//	calls.ErrPermissionDenied -> 403 PERMISSION_DENIED
//	calls.ErrInvalidState   -> 409 INVALID_STATE
//	anything else           -> 500 INTERNAL_ERROR
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, store.ErrUsernameTaken):
		respondError(w, http.StatusConflict, "CONFLICT", "Username already taken", nil)
	case errors.Is(err, calls.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, "PERMISSION_DENIED", "You are not permitted to perform this action", nil)
	case errors.Is(err, calls.ErrInvalidState):
		respondError(w, http.StatusConflict, "INVALID_STATE", "The resource does not allow this transition", nil)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}
