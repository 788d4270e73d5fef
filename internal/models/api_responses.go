// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a structured error body.
//
// Common codes: VALIDATION_ERROR, AUTHENTICATION_ERROR, AUTHORIZATION_ERROR,
// PERMISSION_DENIED, INVALID_STATE, NOT_FOUND, CONFLICT, INTERNAL_ERROR,
// RATE_LIMIT_EXCEEDED.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LoginResponse returns the signed JWT plus the authenticated user.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// AdminStats summarizes server state for the admin dashboard.
type AdminStats struct {
	Users       int `json:"users"`
	Guests      int `json:"guests"`
	Chats       int `json:"chats"`
	Messages    int `json:"messages"`
	Stories     int `json:"stories"`
	Calls       int `json:"calls"`
	OnlineUsers int `json:"onlineUsers"`
	Connections int `json:"connections"`
}
