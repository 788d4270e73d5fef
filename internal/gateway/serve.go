// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/flixchat/flixchat/internal/auth"
	"github.com/flixchat/flixchat/internal/logging"
)

// ServeWS returns the WebSocket upgrade handler. The request must already
// carry authenticated claims (the auth middleware runs first); the
// connection is bound to the authenticated user, never to anything the
// client asserts.
//
// Origins are checked against the configured CORS allow-list. An empty list
// or a "*" entry allows any origin, matching the REST layer's CORS policy.
func ServeWS(hub *Hub, router *Router, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromContext(r.Context())
		if claims == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			logging.Warn().Err(err).Int64("user_id", claims.UserID).Msg("WebSocket upgrade failed")
			return
		}

		NewClient(hub, router, conn, claims.UserID).Start()
	}
}

// originChecker builds the upgrade origin policy from the CORS allow-list.
func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	if len(allowedOrigins) == 0 {
		return func(r *http.Request) bool { return true }
	}

	allowed := make(map[string]bool, len(allowedOrigins))
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		return allowed[origin]
	}
}
