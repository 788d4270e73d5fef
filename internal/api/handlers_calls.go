// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"context"
	"net/http"

	"github.com/flixchat/flixchat/internal/models"
)

// callTransition is the shape of the call service's transition methods.
type callTransition func(ctx context.Context, callID, userID int64) (*models.Call, error)

// CreateCall initiates a call. The call service persists the record and
// broadcasts call_initiated.
func (h *Handler) CreateCall(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCallRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	call, err := h.calls.Initiate(r.Context(), h.claims(r).UserID, &req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, call)
}

// ListCalls returns the caller's call history, both placed and received.
func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	calls, err := h.calls.ListForUser(r.Context(), h.claims(r).UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, calls)
}

// GetCall returns one call; parties only.
func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	callID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	call, err := h.calls.Get(r.Context(), callID, h.claims(r).UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, call)
}

// AnswerCall transitions a ringing call to answered. Receiver only; a
// denied attempt returns 403 and leaves the call untouched.
func (h *Handler) AnswerCall(w http.ResponseWriter, r *http.Request) {
	h.transitionCall(w, r, h.calls.Answer)
}

// DeclineCall transitions a ringing call to declined. Receiver only.
func (h *Handler) DeclineCall(w http.ResponseWriter, r *http.Request) {
	h.transitionCall(w, r, h.calls.Decline)
}

// EndCall transitions an answered call to ended. Either party; ending an
// already-ended call succeeds idempotently.
func (h *Handler) EndCall(w http.ResponseWriter, r *http.Request) {
	h.transitionCall(w, r, h.calls.End)
}

func (h *Handler) transitionCall(w http.ResponseWriter, r *http.Request, transition callTransition) {
	callID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	call, err := transition(r.Context(), callID, h.claims(r).UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, call)
}
