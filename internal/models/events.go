// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package models

// EventType tags a real-time event frame. The set is closed: the gateway's
// dispatch switch covers every value, and unknown tags on inbound frames are
// dropped without closing the connection.
type EventType string

const (
	EventNewMessage    EventType = "new_message"
	EventMessageRead   EventType = "message_read"
	EventUserStatus    EventType = "user_status"
	EventNewStory      EventType = "new_story"
	EventStoryViewed   EventType = "story_viewed"
	EventCallInitiated EventType = "call_initiated"
	EventCallAnswered  EventType = "call_answered"
	EventCallDeclined  EventType = "call_declined"
	EventCallEnded     EventType = "call_ended"
	EventCallMissed    EventType = "call_missed"
)

// Valid reports whether t is a member of the closed event-type enumeration.
func (t EventType) Valid() bool {
	switch t {
	case EventNewMessage, EventMessageRead, EventUserStatus, EventNewStory,
		EventStoryViewed, EventCallInitiated, EventCallAnswered,
		EventCallDeclined, EventCallEnded, EventCallMissed:
		return true
	}
	return false
}

// Event is one WebSocket frame: a type tag plus a type-specific payload.
//
// Events are transient; the gateway never persists them. For entity-bearing
// types (new_message, new_story, story_viewed, call_*) the payload is the
// persisted entity exactly as the REST layer would return it, so a client
// listening only on the socket sees the same representation it would get
// from a REST read.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// UserStatusPayload is the payload for user_status events.
type UserStatusPayload struct {
	UserID int64  `json:"userId"`
	Status string `json:"status"`
}

// MessageReadPayload is the payload for message_read events. Read receipts
// are best-effort: they carry no persistence beyond what the REST layer
// already recorded.
type MessageReadPayload struct {
	ChatID   int64 `json:"chatId"`
	ReaderID int64 `json:"readerId"`
}
