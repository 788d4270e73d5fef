// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"net/http"

	"github.com/flixchat/flixchat/internal/models"
)

// CreateStory posts a story. Expiry is computed by the store from the
// configured TTL; any client-supplied expiry is ignored. The stored record
// is broadcast as new_story.
func (h *Handler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	story, err := h.store.CreateStory(r.Context(), &models.Story{
		UserID:   h.claims(r).UserID,
		Content:  req.Content,
		MediaURL: req.MediaURL,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.hub.BroadcastEvent(&models.Event{Type: models.EventNewStory, Payload: story}, 0)
	respondSuccess(w, http.StatusCreated, story)
}

// ListStories returns all unexpired stories, newest first. Expiry is
// evaluated against the clock at query time.
func (h *Handler) ListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.store.ListRecentStories(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, stories)
}

// GetStory returns one story. Expired stories read as absent.
func (h *Handler) GetStory(w http.ResponseWriter, r *http.Request) {
	storyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	story, err := h.store.GetStory(r.Context(), storyID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, story)
}

// ListUserStories returns one user's unexpired stories.
func (h *Handler) ListUserStories(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	stories, err := h.store.ListStoriesByUser(r.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, stories)
}

// DeleteStory removes a story before its natural expiry. Author only.
func (h *Handler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	storyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	story, err := h.store.GetStory(r.Context(), storyID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if story.UserID != h.claims(r).UserID {
		respondError(w, http.StatusForbidden, "PERMISSION_DENIED", "Only the author can delete a story", nil)
		return
	}

	if err := h.store.DeleteStory(r.Context(), storyID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

// CreateStoryView records that the caller viewed a story and broadcasts
// story_viewed. Repeat views return the original record without a second
// broadcast.
func (h *Handler) CreateStoryView(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStoryViewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	viewerID := h.claims(r).UserID

	if _, err := h.store.GetStory(r.Context(), req.StoryID); err != nil {
		respondDomainError(w, err)
		return
	}

	existing, err := h.store.ListStoryViews(r.Context(), req.StoryID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	alreadyViewed := false
	for _, v := range existing {
		if v.ViewerID == viewerID {
			alreadyViewed = true
			break
		}
	}

	view, err := h.store.CreateStoryView(r.Context(), &models.StoryView{
		StoryID:  req.StoryID,
		ViewerID: viewerID,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if !alreadyViewed {
		h.hub.BroadcastEvent(&models.Event{Type: models.EventStoryViewed, Payload: view}, 0)
	}
	respondSuccess(w, http.StatusCreated, view)
}

// ListStoryViews lists who viewed a story. Author only.
func (h *Handler) ListStoryViews(w http.ResponseWriter, r *http.Request) {
	storyID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	story, err := h.store.GetStory(r.Context(), storyID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if story.UserID != h.claims(r).UserID {
		respondError(w, http.StatusForbidden, "PERMISSION_DENIED", "Only the author can see story viewers", nil)
		return
	}

	views, err := h.store.ListStoryViews(r.Context(), storyID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, views)
}
