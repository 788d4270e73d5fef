// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package api implements the REST surface of FlixChat on the Chi router.
//
// Write endpoints that create entities broadcast the same event a
// WebSocket-originated write would: the persisted record is the payload in
// both paths, so clients see one representation regardless of transport.
package api

import (
	"net/http"
	"time"

	"github.com/flixchat/flixchat/internal/auth"
	"github.com/flixchat/flixchat/internal/calls"
	"github.com/flixchat/flixchat/internal/config"
	"github.com/flixchat/flixchat/internal/gateway"
	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/store"
)

// Handler carries the dependencies shared by all REST endpoints.
type Handler struct {
	store     store.Store
	hub       *gateway.Hub
	calls     *calls.Service
	jwt       *auth.JWTManager
	hasher    *auth.PasswordHasher
	cfg       *config.Config
	security  *logging.SecurityLogger
	startTime time.Time
}

// NewHandler creates the REST handler set.
func NewHandler(st store.Store, hub *gateway.Hub, callService *calls.Service, jwt *auth.JWTManager, hasher *auth.PasswordHasher, cfg *config.Config) *Handler {
	return &Handler{
		store:     st,
		hub:       hub,
		calls:     callService,
		jwt:       jwt,
		hasher:    hasher,
		cfg:       cfg,
		security:  logging.NewSecurityLogger(),
		startTime: time.Now(),
	}
}

// healthResponse is the health endpoint body.
type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Connections   int    `json:"connections"`
	OnlineUsers   int    `json:"onlineUsers"`
}

// Health reports liveness plus basic gateway stats.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Connections:   h.hub.ConnectionCount(),
		OnlineUsers:   len(h.hub.OnlineUserIDs()),
	})
}

// claims returns the authenticated claims; the auth middleware guarantees
// their presence on protected routes.
func (h *Handler) claims(r *http.Request) *auth.Claims {
	return auth.ClaimsFromContext(r.Context())
}
