// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"net/http"

	"github.com/flixchat/flixchat/internal/models"
)

// CreateMessage posts a message over REST. The persisted record is
// broadcast as new_message to every connection, exactly as a
// socket-originated message would be, so the two paths are
// indistinguishable to clients.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !h.requireParticipant(w, r, req.ChatID) {
		return
	}

	msg, err := h.store.CreateMessage(r.Context(), &models.Message{
		ChatID:        req.ChatID,
		SenderID:      h.claims(r).UserID,
		Content:       req.Content,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.hub.BroadcastEvent(&models.Event{Type: models.EventNewMessage, Payload: msg}, 0)
	respondSuccess(w, http.StatusCreated, msg)
}

// ListMessages returns a chat's messages in creation order; participants
// only. Deleted messages appear as tombstones.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.requireParticipant(w, r, chatID) {
		return
	}

	messages, err := h.store.ListMessagesByChat(r.Context(), chatID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, messages)
}

// DeleteMessage tombstones a message. Only the sender may delete.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	msg, err := h.store.GetMessage(r.Context(), messageID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if msg.SenderID != h.claims(r).UserID {
		respondError(w, http.StatusForbidden, "PERMISSION_DENIED", "Only the sender can delete a message", nil)
		return
	}

	deleted, err := h.store.MarkMessageDeleted(r.Context(), messageID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, deleted)
}

// MarkRead broadcasts a message_read receipt for a chat. Receipts are not
// persisted; they only drive unread counters on connected clients.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.requireParticipant(w, r, chatID) {
		return
	}

	receipt := models.MessageReadPayload{ChatID: chatID, ReaderID: h.claims(r).UserID}
	h.hub.BroadcastEvent(&models.Event{Type: models.EventMessageRead, Payload: receipt}, 0)
	respondSuccess(w, http.StatusOK, receipt)
}
