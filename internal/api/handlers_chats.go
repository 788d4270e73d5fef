// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"net/http"

	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/models"
)

// CreateChat opens a chat. The creator joins automatically as admin; the
// listed participants join as members.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req models.CreateChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	creatorID := h.claims(r).UserID

	if req.Type == models.ChatTypeDirect && len(req.ParticipantIDs) != 1 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "A direct chat has exactly one other participant", nil)
		return
	}

	for _, userID := range req.ParticipantIDs {
		if _, err := h.store.GetUser(r.Context(), userID); err != nil {
			respondDomainError(w, err)
			return
		}
	}

	chat, err := h.store.CreateChat(r.Context(), &models.Chat{
		Type:      req.Type,
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
		CreatedBy: creatorID,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if _, err := h.store.AddParticipant(r.Context(), &models.ChatParticipant{
		ChatID: chat.ID,
		UserID: creatorID,
		Role:   models.ParticipantRoleAdmin,
	}); err != nil {
		respondDomainError(w, err)
		return
	}
	for _, userID := range req.ParticipantIDs {
		if userID == creatorID {
			continue
		}
		if _, err := h.store.AddParticipant(r.Context(), &models.ChatParticipant{
			ChatID: chat.ID,
			UserID: userID,
			Role:   models.ParticipantRoleMember,
		}); err != nil {
			respondDomainError(w, err)
			return
		}
	}

	logging.Ctx(r.Context()).Info().
		Int64("chat_id", chat.ID).
		Int64("creator_id", creatorID).
		Str("type", chat.Type).
		Msg("Chat created")

	respondSuccess(w, http.StatusCreated, chat)
}

// ListChats returns the chats the authenticated user belongs to.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.store.ListChatsForUser(r.Context(), h.claims(r).UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, chats)
}

// GetChat returns one chat; participants only.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.requireParticipant(w, r, chatID) {
		return
	}

	chat, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, chat)
}

// AddParticipant adds a user to a chat; participants only.
func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.requireParticipant(w, r, chatID) {
		return
	}

	var req models.AddParticipantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if _, err := h.store.GetUser(r.Context(), req.UserID); err != nil {
		respondDomainError(w, err)
		return
	}

	role := req.Role
	if role == "" {
		role = models.ParticipantRoleMember
	}

	participant, err := h.store.AddParticipant(r.Context(), &models.ChatParticipant{
		ChatID: chatID,
		UserID: req.UserID,
		Role:   role,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, participant)
}

// ListParticipants lists a chat's members; participants only.
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.requireParticipant(w, r, chatID) {
		return
	}

	participants, err := h.store.ListParticipants(r.Context(), chatID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, participants)
}

// RemoveParticipant removes a user from a chat. Users may remove
// themselves; anyone else requires chat admin role.
func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}

	callerID := h.claims(r).UserID
	if targetID != callerID {
		participants, err := h.store.ListParticipants(r.Context(), chatID)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		isAdmin := false
		for _, p := range participants {
			if p.UserID == callerID && p.Role == models.ParticipantRoleAdmin {
				isAdmin = true
				break
			}
		}
		if !isAdmin {
			respondError(w, http.StatusForbidden, "PERMISSION_DENIED", "Only chat admins can remove other participants", nil)
			return
		}
	}

	if err := h.store.RemoveParticipant(r.Context(), chatID, targetID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

// requireParticipant rejects callers that are not members of the chat. A
// non-member gets 403, not 404: the chat's existence is not hidden, only
// its contents.
func (h *Handler) requireParticipant(w http.ResponseWriter, r *http.Request, chatID int64) bool {
	member, err := h.store.IsParticipant(r.Context(), chatID, h.claims(r).UserID)
	if err != nil {
		respondDomainError(w, err)
		return false
	}
	if !member {
		respondError(w, http.StatusForbidden, "PERMISSION_DENIED", "You are not a participant of this chat", nil)
		return false
	}
	return true
}
