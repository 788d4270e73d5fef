// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package client is an embeddable Go client for the real-time gateway. It
// maintains local caches (messages, stories, presence, the active call) by
// merging the server's event stream, mirroring the reconciliation contract
// the browser client follows: entity events are upserted by ID, presence
// events mutate an online set, and call events drive a single active-call
// slot. Reads return copies; the caches are internally locked.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/flixchat/flixchat/internal/auth"
	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/models"
)

const (
	defaultReconnectInterval = 3 * time.Second
	defaultMaxRetries        = 5
)

// ErrNotConnected is returned by send methods while the socket is down.
var ErrNotConnected = errors.New("client: not connected")

// Config configures a Client.
type Config struct {
	// ServerURL is the HTTP base URL of the server, e.g. "http://host:8080".
	ServerURL string

	// Token is the session token from login; it is presented as the session
	// cookie on the upgrade request.
	Token string

	// UserID is the authenticated user's ID, used to recognize our own
	// echoes and call parties.
	UserID int64

	// ReconnectInterval is the fixed delay between reconnect attempts.
	// Defaults to 3s.
	ReconnectInterval time.Duration

	// MaxRetries bounds consecutive failed reconnect attempts before the
	// client gives up. Defaults to 5.
	MaxRetries int

	// OnConnectivityLost fires once when reconnection is abandoned.
	OnConnectivityLost func()

	// OnEvent, when set, observes every event after it has been merged.
	OnEvent func(models.Event)
}

// Client is a connected gateway client.
type Client struct {
	cfg   Config
	state *state

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client. Connect must be called before the caches populate.
func New(cfg Config) *Client {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Client{
		cfg:   cfg,
		state: newState(cfg.UserID),
		done:  make(chan struct{}),
	}
}

// Connect dials the gateway and starts the event loop. The initial dial is
// synchronous so callers learn immediately about bad credentials or an
// unreachable server; reconnection after a drop happens in the background.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("connecting to gateway: %w", err)
	}
	c.setConn(conn)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
	return nil
}

// Close tears the connection down and stops the event loop.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.connMu.Unlock()
	<-c.done
}

// Done is closed when the event loop has exited, either via Close or after
// reconnection was abandoned.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := strings.Replace(c.cfg.ServerURL, "http", "ws", 1) + "/ws"
	header := http.Header{}
	header.Set("Cookie", auth.TokenCookieName+"="+c.cfg.Token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

// run reads frames until the connection drops, then reconnects with a fixed
// backoff. A successful reconnect resets the attempt budget; exhausting it
// fires OnConnectivityLost exactly once and ends the loop.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		c.readLoop(ctx)
		if ctx.Err() != nil {
			return
		}

		if !c.reconnect(ctx) {
			if ctx.Err() == nil && c.cfg.OnConnectivityLost != nil {
				c.cfg.OnConnectivityLost()
			}
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context) {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logging.Warn().Err(err).Msg("Gateway connection lost")
			}
			_ = conn.Close()
			return
		}
		c.dispatch(frame)
	}
}

func (c *Client) reconnect(ctx context.Context) bool {
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.cfg.ReconnectInterval):
		}

		conn, err := c.dial(ctx)
		if err != nil {
			logging.Warn().Err(err).
				Int("attempt", attempt).
				Int("max_retries", c.cfg.MaxRetries).
				Msg("Reconnect attempt failed")
			continue
		}

		c.setConn(conn)
		logging.Info().Int("attempt", attempt).Msg("Reconnected to gateway")
		return true
	}
	return false
}

// eventFrame mirrors the wire shape with a raw payload so dispatch can
// decode per-type.
type eventFrame struct {
	Type    models.EventType `json:"type"`
	Payload json.RawMessage  `json:"payload"`
}

// dispatch merges one inbound frame into the caches. Undecodable frames are
// logged and skipped; they never stop the loop.
func (c *Client) dispatch(frame []byte) {
	var event eventFrame
	if err := json.Unmarshal(frame, &event); err != nil {
		logging.Warn().Err(err).Msg("Skipping undecodable frame")
		return
	}

	switch event.Type {
	case models.EventNewMessage:
		var msg models.Message
		if c.decode(event, &msg) {
			c.state.mergeMessage(msg)
		}
	case models.EventMessageRead:
		var receipt models.MessageReadPayload
		if c.decode(event, &receipt) {
			c.state.mergeRead(receipt)
		}
	case models.EventUserStatus:
		var status models.UserStatusPayload
		if c.decode(event, &status) {
			c.state.mergeStatus(status)
		}
	case models.EventNewStory:
		var story models.Story
		if c.decode(event, &story) {
			c.state.mergeStory(story)
		}
	case models.EventStoryViewed:
		var view models.StoryView
		if c.decode(event, &view) {
			c.state.mergeStoryView(view)
		}
	case models.EventCallInitiated, models.EventCallAnswered,
		models.EventCallDeclined, models.EventCallEnded, models.EventCallMissed:
		var call models.Call
		if c.decode(event, &call) {
			c.state.mergeCall(call)
		}
	default:
		logging.Warn().Str("type", string(event.Type)).Msg("Skipping frame with unknown event type")
		return
	}

	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(models.Event{Type: event.Type, Payload: event.Payload})
	}
}

func (c *Client) decode(event eventFrame, into interface{}) bool {
	if err := json.Unmarshal(event.Payload, into); err != nil {
		logging.Warn().Err(err).Str("type", string(event.Type)).Msg("Skipping frame with undecodable payload")
		return false
	}
	return true
}

// send writes one event frame. gorilla permits a single concurrent writer,
// hence the write lock.
func (c *Client) send(eventType models.EventType, payload interface{}) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := json.Marshal(models.Event{Type: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", eventType, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("sending %s frame: %w", eventType, err)
	}
	return nil
}

// OpenChat marks a chat as being viewed: its unread counter resets and new
// messages in it stop counting as unread.
func (c *Client) OpenChat(chatID int64) {
	c.state.setOpenChat(chatID)
}

// CloseChat marks no chat as open.
func (c *Client) CloseChat() {
	c.state.setOpenChat(0)
}

// SendMessage posts a message to a chat. The stored record arrives back as
// a new_message echo and replaces nothing locally until then; callers that
// render optimistically should key by the echoed ID.
func (c *Client) SendMessage(chatID int64, content string) error {
	return c.send(models.EventNewMessage, models.CreateMessageRequest{ChatID: chatID, Content: content})
}

// MarkRead announces that the caller has read a chat.
func (c *Client) MarkRead(chatID int64) error {
	return c.send(models.EventMessageRead, models.MessageReadPayload{ChatID: chatID})
}

// SetAway sets the manual away status. online/offline are announced by the
// server on connection edges and cannot be set here.
func (c *Client) SetAway() error {
	return c.send(models.EventUserStatus, models.UserStatusPayload{Status: models.StatusAway})
}

// PostStory publishes a story; expiry is assigned server-side.
func (c *Client) PostStory(content, mediaURL string) error {
	return c.send(models.EventNewStory, models.CreateStoryRequest{Content: content, MediaURL: mediaURL})
}

// ViewStory records that the caller viewed a story.
func (c *Client) ViewStory(storyID int64) error {
	return c.send(models.EventStoryViewed, models.CreateStoryViewRequest{StoryID: storyID})
}

// StartCall initiates an audio or video call.
func (c *Client) StartCall(receiverID int64, callType string) error {
	return c.send(models.EventCallInitiated, models.CreateCallRequest{ReceiverID: receiverID, Type: callType})
}

// AnswerCall answers a ringing call. Only the receiver may answer.
func (c *Client) AnswerCall(callID int64) error {
	return c.send(models.EventCallAnswered, map[string]int64{"callId": callID})
}

// DeclineCall declines a ringing call. Only the receiver may decline.
func (c *Client) DeclineCall(callID int64) error {
	return c.send(models.EventCallDeclined, map[string]int64{"callId": callID})
}

// EndCall ends an answered call; either party may end.
func (c *Client) EndCall(callID int64) error {
	return c.send(models.EventCallEnded, map[string]int64{"callId": callID})
}

// Messages returns a copy of the cached messages for a chat, arrival order.
func (c *Client) Messages(chatID int64) []models.Message {
	return c.state.chatMessages(chatID)
}

// UnreadCount returns the unread counter for a chat.
func (c *Client) UnreadCount(chatID int64) int {
	return c.state.unreadCount(chatID)
}

// Stories returns a copy of the cached stories, ID order.
func (c *Client) Stories() []models.Story {
	return c.state.allStories()
}

// StoryViewers returns the cached views for a story, ID order.
func (c *Client) StoryViewers(storyID int64) []models.StoryView {
	return c.state.storyViewers(storyID)
}

// OnlineUsers returns the IDs of users currently announced online or away.
func (c *Client) OnlineUsers() []int64 {
	return c.state.onlineUsers()
}

// UserStatus returns the last announced status for a user; users with no
// announcement are offline.
func (c *Client) UserStatus(userID int64) string {
	return c.state.userStatus(userID)
}

// ActiveCall returns a copy of the tracked active call, or nil.
func (c *Client) ActiveCall() *models.Call {
	return c.state.activeCall()
}
