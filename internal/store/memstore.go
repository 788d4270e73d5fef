// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flixchat/flixchat/internal/models"
)

// MemStore is the in-memory Store implementation.
//
// All maps are guarded by a single RWMutex. IDs are assigned from per-entity
// counters starting at 1, so 0 is never a valid entity ID and can be used as
// a "none" sentinel by callers.
//
// The now func is injectable for tests; it defaults to time.Now.
type MemStore struct {
	mu sync.RWMutex

	users        map[int64]models.User
	chats        map[int64]models.Chat
	participants map[int64]models.ChatParticipant
	messages     map[int64]models.Message
	stories      map[int64]models.Story
	storyViews   map[int64]models.StoryView
	calls        map[int64]models.Call

	userID        int64
	chatID        int64
	participantID int64
	messageID     int64
	storyID       int64
	storyViewID   int64
	callID        int64

	storyTTL time.Duration
	now      func() time.Time
}

// Option configures a MemStore.
type Option func(*MemStore)

// WithClock injects a clock, used by tests to control story expiry and
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemStore) { s.now = now }
}

// WithStoryTTL overrides the story time-to-live (default 24h).
func WithStoryTTL(ttl time.Duration) Option {
	return func(s *MemStore) { s.storyTTL = ttl }
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		users:        make(map[int64]models.User),
		chats:        make(map[int64]models.Chat),
		participants: make(map[int64]models.ChatParticipant),
		messages:     make(map[int64]models.Message),
		stories:      make(map[int64]models.Story),
		storyViews:   make(map[int64]models.StoryView),
		calls:        make(map[int64]models.Call),
		storyTTL:     24 * time.Hour,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Users

// CreateUser stores a new user. Usernames are unique (case-insensitive).
func (s *MemStore) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lower := strings.ToLower(user.Username)
	for _, u := range s.users {
		if strings.ToLower(u.Username) == lower {
			return nil, ErrUsernameTaken
		}
	}

	s.userID++
	stored := *user
	stored.ID = s.userID
	stored.CreatedAt = s.now()
	if stored.Role == "" {
		stored.Role = models.RoleUser
	}
	if stored.Status == "" {
		stored.Status = models.StatusOffline
	}
	s.users[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := u
	return &out, nil
}

func (s *MemStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(username)
	for _, u := range s.users {
		if strings.ToLower(u.Username) == lower {
			out := u
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateUser applies update to a copy of the stored user under the write
// lock, then stores it back. The ID field is preserved regardless of what
// update does.
func (s *MemStore) UpdateUser(_ context.Context, id int64, update func(*models.User)) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	update(&u)
	u.ID = id
	s.users[id] = u

	out := u
	return &out, nil
}

func (s *MemStore) UpdateUserStatus(ctx context.Context, id int64, status string) (*models.User, error) {
	return s.UpdateUser(ctx, id, func(u *models.User) { u.Status = status })
}

func (s *MemStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// ---------------------------------------------------------------------------
// Chats

func (s *MemStore) CreateChat(_ context.Context, chat *models.Chat) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chatID++
	stored := *chat
	stored.ID = s.chatID
	stored.CreatedAt = s.now()
	s.chats[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) GetChat(_ context.Context, id int64) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := c
	return &out, nil
}

func (s *MemStore) ListChatsForUser(_ context.Context, userID int64) ([]models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Chat
	for _, p := range s.participants {
		if p.UserID != userID {
			continue
		}
		if c, ok := s.chats[p.ChatID]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) DeleteChat(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[id]; !ok {
		return ErrNotFound
	}
	delete(s.chats, id)
	for pid, p := range s.participants {
		if p.ChatID == id {
			delete(s.participants, pid)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Participants

func (s *MemStore) AddParticipant(_ context.Context, p *models.ChatParticipant) (*models.ChatParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[p.ChatID]; !ok {
		return nil, ErrNotFound
	}

	// Adding an existing participant is a no-op returning the existing row.
	for _, existing := range s.participants {
		if existing.ChatID == p.ChatID && existing.UserID == p.UserID {
			out := existing
			return &out, nil
		}
	}

	s.participantID++
	stored := *p
	stored.ID = s.participantID
	stored.JoinedAt = s.now()
	if stored.Role == "" {
		stored.Role = models.ParticipantRoleMember
	}
	s.participants[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) ListParticipants(_ context.Context, chatID int64) ([]models.ChatParticipant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ChatParticipant
	for _, p := range s.participants {
		if p.ChatID == chatID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) IsParticipant(_ context.Context, chatID, userID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.participants {
		if p.ChatID == chatID && p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) RemoveParticipant(_ context.Context, chatID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for pid, p := range s.participants {
		if p.ChatID == chatID && p.UserID == userID {
			delete(s.participants, pid)
			return nil
		}
	}
	return ErrNotFound
}

// ---------------------------------------------------------------------------
// Messages

func (s *MemStore) CreateMessage(_ context.Context, msg *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[msg.ChatID]; !ok {
		return nil, ErrNotFound
	}

	s.messageID++
	stored := *msg
	stored.ID = s.messageID
	stored.CreatedAt = s.now()
	stored.IsDeleted = false
	s.messages[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) GetMessage(_ context.Context, id int64) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m
	return &out, nil
}

func (s *MemStore) ListMessagesByChat(_ context.Context, chatID int64) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkMessageDeleted tombstones a message: the row survives with IsDeleted
// set and content cleared.
func (s *MemStore) MarkMessageDeleted(_ context.Context, id int64) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.IsDeleted = true
	m.Content = ""
	m.AttachmentURL = ""
	s.messages[id] = m

	out := m
	return &out, nil
}

// ---------------------------------------------------------------------------
// Stories

func (s *MemStore) CreateStory(_ context.Context, story *models.Story) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storyID++
	stored := *story
	stored.ID = s.storyID
	stored.CreatedAt = s.now()
	// Expiry is always server-computed, never trusted from the caller.
	stored.ExpiresAt = stored.CreatedAt.Add(s.storyTTL)
	s.stories[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) GetStory(_ context.Context, id int64) (*models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stories[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := st
	return &out, nil
}

// ListRecentStories returns unexpired stories only. Expiry is evaluated
// against the clock on every call; there is no background sweep.
func (s *MemStore) ListRecentStories(_ context.Context) ([]models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []models.Story
	for _, st := range s.stories {
		if st.ExpiresAt.After(now) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListStoriesByUser(_ context.Context, userID int64) ([]models.Story, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []models.Story
	for _, st := range s.stories {
		if st.UserID == userID && st.ExpiresAt.After(now) {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) DeleteStory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stories[id]; !ok {
		return ErrNotFound
	}
	delete(s.stories, id)
	for vid, v := range s.storyViews {
		if v.StoryID == id {
			delete(s.storyViews, vid)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Story views

// CreateStoryView records a view. A repeat view by the same viewer returns
// the existing record unchanged.
func (s *MemStore) CreateStoryView(_ context.Context, view *models.StoryView) (*models.StoryView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stories[view.StoryID]; !ok {
		return nil, ErrNotFound
	}

	for _, existing := range s.storyViews {
		if existing.StoryID == view.StoryID && existing.ViewerID == view.ViewerID {
			out := existing
			return &out, nil
		}
	}

	s.storyViewID++
	stored := *view
	stored.ID = s.storyViewID
	stored.ViewedAt = s.now()
	s.storyViews[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) ListStoryViews(_ context.Context, storyID int64) ([]models.StoryView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.StoryView
	for _, v := range s.storyViews {
		if v.StoryID == storyID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---------------------------------------------------------------------------
// Calls

func (s *MemStore) CreateCall(_ context.Context, call *models.Call) (*models.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callID++
	stored := *call
	stored.ID = s.callID
	stored.StartTime = s.now()
	stored.Status = models.CallStatusInitiated
	stored.EndTime = nil
	s.calls[stored.ID] = stored

	out := stored
	return &out, nil
}

func (s *MemStore) GetCall(_ context.Context, id int64) (*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := c
	return &out, nil
}

// UpdateCall applies update to a copy of the stored call under the write
// lock. The read-modify-write is atomic with respect to other UpdateCall
// callers, which is what the call state machine relies on.
func (s *MemStore) UpdateCall(_ context.Context, id int64, update func(*models.Call)) (*models.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	update(&c)
	c.ID = id
	s.calls[id] = c

	out := c
	return &out, nil
}

func (s *MemStore) ListCallsForUser(_ context.Context, userID int64) ([]models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Call
	for _, c := range s.calls {
		if c.CallerID == userID || c.ReceiverID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) ListCallsByStatus(_ context.Context, status string) ([]models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Call
	for _, c := range s.calls {
		if c.Status == status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---------------------------------------------------------------------------

// Counts returns entity totals for the admin dashboard. Online users and
// connection counts are owned by the gateway, not the store, so they are
// left zero here.
func (s *MemStore) Counts(_ context.Context) (models.AdminStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.AdminStats{
		Chats:    len(s.chats),
		Messages: len(s.messages),
		Stories:  len(s.stories),
		Calls:    len(s.calls),
	}
	for _, u := range s.users {
		if u.IsGuest {
			stats.Guests++
		} else {
			stats.Users++
		}
	}
	return stats, nil
}
