// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package store provides the persistence boundary for FlixChat entities.
//
// The Store interface is the single write/read path shared by the REST
// handlers and the WebSocket gateway, so both produce identical entity
// representations. The in-memory implementation (MemStore) is the only one
// shipped; swapping in a database means implementing this interface.
package store

import (
	"context"
	"errors"

	"github.com/flixchat/flixchat/internal/models"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUsernameTaken indicates a username uniqueness violation.
	ErrUsernameTaken = errors.New("username already taken")
)

// Store is the persistence contract for all FlixChat entities.
//
// Implementations must be safe for concurrent use and must return copies of
// stored entities, never internal pointers.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id int64, update func(*models.User)) (*models.User, error)
	UpdateUserStatus(ctx context.Context, id int64, status string) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error

	// Chats
	CreateChat(ctx context.Context, chat *models.Chat) (*models.Chat, error)
	GetChat(ctx context.Context, id int64) (*models.Chat, error)
	ListChatsForUser(ctx context.Context, userID int64) ([]models.Chat, error)
	DeleteChat(ctx context.Context, id int64) error

	// Participants
	AddParticipant(ctx context.Context, p *models.ChatParticipant) (*models.ChatParticipant, error)
	ListParticipants(ctx context.Context, chatID int64) ([]models.ChatParticipant, error)
	IsParticipant(ctx context.Context, chatID, userID int64) (bool, error)
	RemoveParticipant(ctx context.Context, chatID, userID int64) error

	// Messages
	CreateMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	GetMessage(ctx context.Context, id int64) (*models.Message, error)
	ListMessagesByChat(ctx context.Context, chatID int64) ([]models.Message, error)
	MarkMessageDeleted(ctx context.Context, id int64) (*models.Message, error)

	// Stories
	CreateStory(ctx context.Context, story *models.Story) (*models.Story, error)
	GetStory(ctx context.Context, id int64) (*models.Story, error)
	ListRecentStories(ctx context.Context) ([]models.Story, error)
	ListStoriesByUser(ctx context.Context, userID int64) ([]models.Story, error)
	DeleteStory(ctx context.Context, id int64) error

	// Story views
	CreateStoryView(ctx context.Context, view *models.StoryView) (*models.StoryView, error)
	ListStoryViews(ctx context.Context, storyID int64) ([]models.StoryView, error)

	// Calls
	CreateCall(ctx context.Context, call *models.Call) (*models.Call, error)
	GetCall(ctx context.Context, id int64) (*models.Call, error)
	UpdateCall(ctx context.Context, id int64, update func(*models.Call)) (*models.Call, error)
	ListCallsForUser(ctx context.Context, userID int64) ([]models.Call, error)
	ListCallsByStatus(ctx context.Context, status string) ([]models.Call, error)

	// Counts feeds the admin stats endpoint.
	Counts(ctx context.Context) (models.AdminStats, error)
}
