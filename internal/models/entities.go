// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package models defines the persisted entities, request/response types,
// and real-time event types shared across the store, the API layer, and
// the WebSocket gateway.
package models

import (
	"time"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User presence states. online/offline are announced by the gateway on
// connection edges; away is the only status a client may set manually.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
)

// User represents a registered (or guest) account.
//
// The Password field holds the bcrypt hash and is never serialized; handlers
// that return users must go through Public.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	FullName  string    `json:"fullName"`
	Bio       string    `json:"bio,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CoverURL  string    `json:"coverUrl,omitempty"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	IsGuest   bool      `json:"isGuest"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public returns a copy of the user safe for API responses and broadcasts.
// It exists so the bcrypt hash can never leak through a marshal path that
// bypasses the json:"-" tag (e.g. map-based encoding).
func (u User) Public() User {
	u.Password = ""
	return u
}

// Chat kinds
const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

// Chat represents a direct or group conversation.
type Chat struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Chat participant roles
const (
	ParticipantRoleMember = "member"
	ParticipantRoleAdmin  = "admin"
)

// ChatParticipant links a user to a chat.
type ChatParticipant struct {
	ID       int64     `json:"id"`
	ChatID   int64     `json:"chatId"`
	UserID   int64     `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Message is one chat message. Deleted messages keep their row with
// IsDeleted set so clients can render a tombstone.
type Message struct {
	ID            int64     `json:"id"`
	ChatID        int64     `json:"chatId"`
	SenderID      int64     `json:"senderId"`
	Content       string    `json:"content"`
	AttachmentURL string    `json:"attachmentUrl,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	IsDeleted     bool      `json:"isDeleted"`
}

// Story is an ephemeral post. ExpiresAt is always computed server-side as
// CreatedAt + the configured TTL; visibility is evaluated against the clock
// at query time, never via a background sweep.
type Story struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Content   string    `json:"content,omitempty"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StoryView records that a viewer saw a story. At most one view per
// (story, viewer) pair is stored.
type StoryView struct {
	ID       int64     `json:"id"`
	StoryID  int64     `json:"storyId"`
	ViewerID int64     `json:"viewerId"`
	ViewedAt time.Time `json:"viewedAt"`
}

// Call kinds
const (
	CallTypeAudio = "audio"
	CallTypeVideo = "video"
)

// Call lifecycle states. The lifecycle is strictly linear:
// initiated -> answered | declined | missed, answered -> ended.
// declined, ended, and missed are terminal.
const (
	CallStatusInitiated = "initiated"
	CallStatusAnswered  = "answered"
	CallStatusDeclined  = "declined"
	CallStatusEnded     = "ended"
	CallStatusMissed    = "missed"
)

// Call is a persisted audio/video call session.
type Call struct {
	ID         int64      `json:"id"`
	CallerID   int64      `json:"callerId"`
	ReceiverID int64      `json:"receiverId"`
	ChatID     *int64     `json:"chatId,omitempty"`
	Type       string     `json:"type"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Status     string     `json:"status"`
}

// IsTerminal reports whether the call can accept no further transitions.
func (c *Call) IsTerminal() bool {
	switch c.Status {
	case CallStatusDeclined, CallStatusEnded, CallStatusMissed:
		return true
	}
	return false
}
