// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package models

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"fullName" validate:"required,min=1,max=100"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GuestLoginRequest creates an ephemeral guest account. The server appends a
// random suffix to the display name to build a unique username.
type GuestLoginRequest struct {
	FullName string `json:"fullName" validate:"required,min=1,max=100"`
}

// UpdateUserRequest modifies profile fields. All fields optional; zero-value
// fields are left untouched.
type UpdateUserRequest struct {
	FullName  string `json:"fullName" validate:"omitempty,max=100"`
	Bio       string `json:"bio" validate:"omitempty,max=500"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,uri,max=2048"`
	CoverURL  string `json:"coverUrl" validate:"omitempty,uri,max=2048"`
}

// CreateChatRequest opens a direct or group chat with the given participants.
// The creator is always added as a participant implicitly.
type CreateChatRequest struct {
	Type           string  `json:"type" validate:"required,oneof=direct group"`
	Name           string  `json:"name" validate:"omitempty,max=100"`
	AvatarURL      string  `json:"avatarUrl" validate:"omitempty,uri,max=2048"`
	ParticipantIDs []int64 `json:"participantIds" validate:"required,min=1,dive,gt=0"`
}

// AddParticipantRequest adds a user to an existing chat.
type AddParticipantRequest struct {
	UserID int64  `json:"userId" validate:"required,gt=0"`
	Role   string `json:"role" validate:"omitempty,oneof=member admin"`
}

// CreateMessageRequest posts a message to a chat. The server assigns id and
// timestamp; clients never supply them.
type CreateMessageRequest struct {
	ChatID        int64  `json:"chatId" validate:"required,gt=0"`
	Content       string `json:"content" validate:"required_without=AttachmentURL,max=10000"`
	AttachmentURL string `json:"attachmentUrl" validate:"omitempty,uri,max=2048"`
}

// CreateStoryRequest posts a story. Expiry is computed server-side and never
// trusted from the client.
type CreateStoryRequest struct {
	Content  string `json:"content" validate:"required_without=MediaURL,max=2000"`
	MediaURL string `json:"mediaUrl" validate:"omitempty,uri,max=2048"`
}

// CreateStoryViewRequest records that the caller viewed a story.
type CreateStoryViewRequest struct {
	StoryID int64 `json:"storyId" validate:"required,gt=0"`
}

// CreateCallRequest initiates a call to another user.
type CreateCallRequest struct {
	ReceiverID int64  `json:"receiverId" validate:"required,gt=0"`
	ChatID     *int64 `json:"chatId" validate:"omitempty,gt=0"`
	Type       string `json:"type" validate:"required,oneof=audio video"`
}

// MarkReadRequest acknowledges that the caller read a chat up to now.
type MarkReadRequest struct {
	ChatID int64 `json:"chatId" validate:"required,gt=0"`
}
