// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package gateway

import (
	"context"
	"errors"

	"github.com/goccy/go-json"

	"github.com/flixchat/flixchat/internal/calls"
	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/metrics"
	"github.com/flixchat/flixchat/internal/models"
	"github.com/flixchat/flixchat/internal/store"
	"github.com/flixchat/flixchat/internal/validation"
)

// inboundEnvelope is the wire shape of a client frame: a type tag plus a
// raw payload decoded per-type.
type inboundEnvelope struct {
	Type    models.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

// callActionPayload carries the call ID for answer/decline/end frames.
type callActionPayload struct {
	CallID int64 `json:"callId" validate:"required,gt=0"`
}

// Router dispatches inbound client frames. Entity-bearing events are
// persisted first and fanned out only on success; a persistence failure
// aborts the event entirely so clients never see an entity the store does
// not hold. Malformed or unknown frames are dropped with a log line and
// never close the connection.
type Router struct {
	store store.Store
	calls *calls.Service
	hub   *Hub
}

// NewRouter creates the inbound event router.
func NewRouter(st store.Store, callService *calls.Service, hub *Hub) *Router {
	return &Router{store: st, calls: callService, hub: hub}
}

// Dispatch routes one raw frame from the given user.
func (r *Router) Dispatch(userID int64, frame []byte) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		metrics.RecordEventDropped("malformed")
		logging.Warn().Err(err).Int64("user_id", userID).Msg("Dropping malformed frame")
		return
	}

	if !envelope.Type.Valid() {
		metrics.RecordEventDropped("unknown_type")
		logging.Warn().
			Int64("user_id", userID).
			Str("type", string(envelope.Type)).
			Msg("Dropping frame with unknown event type")
		return
	}

	metrics.RecordEventRouted(string(envelope.Type))
	ctx := context.Background()

	switch envelope.Type {
	case models.EventNewMessage:
		r.handleNewMessage(ctx, userID, envelope.Payload)
	case models.EventMessageRead:
		r.handleMessageRead(ctx, userID, envelope.Payload)
	case models.EventUserStatus:
		r.handleUserStatus(ctx, userID, envelope.Payload)
	case models.EventNewStory:
		r.handleNewStory(ctx, userID, envelope.Payload)
	case models.EventStoryViewed:
		r.handleStoryViewed(ctx, userID, envelope.Payload)
	case models.EventCallInitiated:
		r.handleCallInitiated(ctx, userID, envelope.Payload)
	case models.EventCallAnswered:
		r.handleCallAction(ctx, userID, envelope.Payload, r.calls.Answer)
	case models.EventCallDeclined:
		r.handleCallAction(ctx, userID, envelope.Payload, r.calls.Decline)
	case models.EventCallEnded:
		r.handleCallAction(ctx, userID, envelope.Payload, r.calls.End)
	case models.EventCallMissed:
		// Server-originated only; clients cannot declare a call missed.
		metrics.RecordEventDropped("unknown_type")
		logging.Warn().Int64("user_id", userID).Msg("Dropping client-sent call_missed frame")
	}
}

// handleNewMessage persists the message and echoes the stored record to all
// connections, the sender's included. The sender replaces its optimistic
// copy by ID on echo.
func (r *Router) handleNewMessage(ctx context.Context, userID int64, payload json.RawMessage) {
	var req models.CreateMessageRequest
	if !r.decode(userID, payload, &req) {
		return
	}

	member, err := r.store.IsParticipant(ctx, req.ChatID, userID)
	if err != nil || !member {
		metrics.RecordEventDropped("validation")
		logging.Warn().
			Int64("user_id", userID).
			Int64("chat_id", req.ChatID).
			Msg("Dropping message from non-participant")
		return
	}

	msg, err := r.store.CreateMessage(ctx, &models.Message{
		ChatID:        req.ChatID,
		SenderID:      userID,
		Content:       req.Content,
		AttachmentURL: req.AttachmentURL,
	})
	if err != nil {
		metrics.RecordEventDropped("persistence")
		logging.Error().Err(err).Int64("user_id", userID).Msg("Failed to persist message, aborting event")
		return
	}

	r.hub.BroadcastEvent(&models.Event{Type: models.EventNewMessage, Payload: msg}, 0)
}

// handleMessageRead fans out a read receipt. Receipts carry no entity and
// are not persisted; they only drive unread counters on connected clients.
func (r *Router) handleMessageRead(ctx context.Context, userID int64, payload json.RawMessage) {
	var receipt models.MessageReadPayload
	if !r.decode(userID, payload, &receipt) {
		return
	}

	member, err := r.store.IsParticipant(ctx, receipt.ChatID, userID)
	if err != nil || !member {
		metrics.RecordEventDropped("validation")
		return
	}

	// The reader ID always comes from the authenticated connection, never
	// from the frame.
	receipt.ReaderID = userID
	r.hub.BroadcastEvent(&models.Event{Type: models.EventMessageRead, Payload: receipt}, 0)
}

// handleUserStatus lets a client set a manual status (for example "away").
// online/offline remain the hub's to announce; manual frames claiming them
// are dropped so clients cannot forge presence edges.
func (r *Router) handleUserStatus(ctx context.Context, userID int64, payload json.RawMessage) {
	var status models.UserStatusPayload
	if !r.decode(userID, payload, &status) {
		return
	}

	if status.Status != models.StatusAway {
		metrics.RecordEventDropped("validation")
		logging.Warn().
			Int64("user_id", userID).
			Str("status", status.Status).
			Msg("Dropping user_status frame with non-manual status")
		return
	}

	if _, err := r.store.UpdateUserStatus(ctx, userID, status.Status); err != nil {
		metrics.RecordEventDropped("persistence")
		logging.Error().Err(err).Int64("user_id", userID).Msg("Failed to persist status, aborting event")
		return
	}

	status.UserID = userID
	r.hub.BroadcastEvent(&models.Event{Type: models.EventUserStatus, Payload: status}, 0)
}

// handleNewStory persists the story and fans out the stored record, expiry
// included.
func (r *Router) handleNewStory(ctx context.Context, userID int64, payload json.RawMessage) {
	var req models.CreateStoryRequest
	if !r.decode(userID, payload, &req) {
		return
	}

	story, err := r.store.CreateStory(ctx, &models.Story{
		UserID:   userID,
		Content:  req.Content,
		MediaURL: req.MediaURL,
	})
	if err != nil {
		metrics.RecordEventDropped("persistence")
		logging.Error().Err(err).Int64("user_id", userID).Msg("Failed to persist story, aborting event")
		return
	}

	r.hub.BroadcastEvent(&models.Event{Type: models.EventNewStory, Payload: story}, 0)
}

// handleStoryViewed records the view and fans out the stored record. A
// repeat view returns the original record, so fan-out stays idempotent in
// content even when a client re-sends.
func (r *Router) handleStoryViewed(ctx context.Context, userID int64, payload json.RawMessage) {
	var req models.CreateStoryViewRequest
	if !r.decode(userID, payload, &req) {
		return
	}

	view, err := r.store.CreateStoryView(ctx, &models.StoryView{
		StoryID:  req.StoryID,
		ViewerID: userID,
	})
	if err != nil {
		metrics.RecordEventDropped("persistence")
		logging.Error().Err(err).Int64("user_id", userID).Msg("Failed to persist story view, aborting event")
		return
	}

	r.hub.BroadcastEvent(&models.Event{Type: models.EventStoryViewed, Payload: view}, 0)
}

// handleCallInitiated starts a call. The call service persists and
// broadcasts; the router only decodes and forwards.
func (r *Router) handleCallInitiated(ctx context.Context, userID int64, payload json.RawMessage) {
	var req models.CreateCallRequest
	if !r.decode(userID, payload, &req) {
		return
	}

	if _, err := r.calls.Initiate(ctx, userID, &req); err != nil {
		logging.Warn().Err(err).Int64("user_id", userID).Msg("Call initiation rejected")
	}
}

// handleCallAction applies an answer/decline/end transition. Rejections
// (wrong party, wrong state) are logged and dropped; the state machine has
// already recorded the rejection reason.
func (r *Router) handleCallAction(ctx context.Context, userID int64, payload json.RawMessage, transition func(context.Context, int64, int64) (*models.Call, error)) {
	var action callActionPayload
	if !r.decode(userID, payload, &action) {
		return
	}

	if _, err := transition(ctx, action.CallID, userID); err != nil {
		if errors.Is(err, calls.ErrPermissionDenied) || errors.Is(err, calls.ErrInvalidState) || errors.Is(err, store.ErrNotFound) {
			logging.Warn().Err(err).
				Int64("user_id", userID).
				Int64("call_id", action.CallID).
				Msg("Call transition rejected")
			return
		}
		logging.Error().Err(err).Int64("call_id", action.CallID).Msg("Call transition failed")
	}
}

// decode unmarshals and validates a payload, recording a drop on failure.
func (r *Router) decode(userID int64, payload json.RawMessage, into interface{}) bool {
	if err := json.Unmarshal(payload, into); err != nil {
		metrics.RecordEventDropped("malformed")
		logging.Warn().Err(err).Int64("user_id", userID).Msg("Dropping frame with malformed payload")
		return false
	}
	if err := validation.ValidateStruct(into); err != nil {
		metrics.RecordEventDropped("validation")
		logging.Warn().Str("reason", err.Error()).Int64("user_id", userID).Msg("Dropping frame with invalid payload")
		return false
	}
	return true
}
