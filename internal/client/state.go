// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package client

import (
	"sort"
	"sync"

	"github.com/flixchat/flixchat/internal/models"
)

// state holds the client-side caches the event stream reconciles into.
// Every event type has a merge rule; merges are idempotent so replayed or
// duplicated frames converge to the same cache contents.
type state struct {
	mu sync.Mutex

	selfID     int64
	openChatID int64

	messages map[int64][]models.Message // chat ID -> messages, arrival order
	unread   map[int64]int
	stories  map[int64]models.Story
	views    map[int64]map[int64]models.StoryView // story ID -> viewer ID -> view
	statuses map[int64]string                     // user ID -> last announced status
	call     *models.Call
}

func newState(selfID int64) *state {
	return &state{
		selfID:   selfID,
		messages: make(map[int64][]models.Message),
		unread:   make(map[int64]int),
		stories:  make(map[int64]models.Story),
		views:    make(map[int64]map[int64]models.StoryView),
		statuses: make(map[int64]string),
	}
}

// mergeMessage upserts by ID. The server echoes writes to every connection
// including the writer's own, so the sender's optimistic copy is replaced
// in place rather than duplicated. A genuinely new message in a chat that
// is not currently open bumps the unread counter, unless we sent it.
func (s *state) mergeMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[msg.ChatID]
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg
			return
		}
	}
	s.messages[msg.ChatID] = append(list, msg)

	if msg.ChatID != s.openChatID && msg.SenderID != s.selfID {
		s.unread[msg.ChatID]++
	}
}

// mergeRead clears the unread counter when the receipt is our own (for
// example from another device). Other users' receipts update nothing we
// cache today.
func (s *state) mergeRead(receipt models.MessageReadPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receipt.ReaderID == s.selfID {
		delete(s.unread, receipt.ChatID)
	}
}

func (s *state) mergeStatus(payload models.UserStatusPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payload.Status == models.StatusOffline {
		delete(s.statuses, payload.UserID)
		return
	}
	s.statuses[payload.UserID] = payload.Status
}

func (s *state) mergeStory(story models.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[story.ID] = story
}

func (s *state) mergeStoryView(view models.StoryView) {
	s.mu.Lock()
	defer s.mu.Unlock()

	viewers := s.views[view.StoryID]
	if viewers == nil {
		viewers = make(map[int64]models.StoryView)
		s.views[view.StoryID] = viewers
	}
	viewers[view.ViewerID] = view
}

// mergeCall applies a call event. Calls we are not a party to are ignored;
// a terminal transition for the tracked call clears it.
func (s *state) mergeCall(call models.Call) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.CallerID != s.selfID && call.ReceiverID != s.selfID {
		return
	}
	if call.IsTerminal() {
		if s.call != nil && s.call.ID == call.ID {
			s.call = nil
		}
		return
	}
	s.call = &call
}

func (s *state) setOpenChat(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.openChatID = chatID
	if chatID != 0 {
		delete(s.unread, chatID)
	}
}

// Copy-out accessors. Callers receive snapshots; the caches are never
// exposed by reference.

func (s *state) chatMessages(chatID int64) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.messages[chatID]))
	copy(out, s.messages[chatID])
	return out
}

func (s *state) unreadCount(chatID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[chatID]
}

func (s *state) allStories() []models.Story {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Story, 0, len(s.stories))
	for _, story := range s.stories {
		out = append(out, story)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) storyViewers(storyID int64) []models.StoryView {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.StoryView, 0, len(s.views[storyID]))
	for _, view := range s.views[storyID] {
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) onlineUsers() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]int64, 0, len(s.statuses))
	for id := range s.statuses {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *state) userStatus(userID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status, ok := s.statuses[userID]; ok {
		return status
	}
	return models.StatusOffline
}

func (s *state) activeCall() *models.Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.call == nil {
		return nil
	}
	call := *s.call
	return &call
}
