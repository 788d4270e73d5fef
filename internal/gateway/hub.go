// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package gateway implements the real-time WebSocket layer: the connection
// registry, edge-triggered presence tracking, the inbound event router, and
// fan-out broadcasting to connected clients.
package gateway

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/flixchat/flixchat/internal/config"
	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/metrics"
	"github.com/flixchat/flixchat/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// presenceStore receives user status updates on presence edges. Satisfied by
// store.Store; may be nil in tests.
type presenceStore interface {
	UpdateUserStatus(ctx context.Context, id int64, status string) (*models.User, error)
}

// broadcastRequest is one queued fan-out: a pre-marshaled frame plus an
// optional user whose connections are skipped.
type broadcastRequest struct {
	eventType     models.EventType
	frame         []byte
	excludeUserID int64
}

// Hub owns the connection registry and the broadcast loop. All lifecycle
// and fan-out work funnels through one goroutine (RunWithContext), keeping
// presence edges and delivery order deterministic.
type Hub struct {
	cfg      config.GatewayConfig
	registry *registry
	store    presenceStore

	Register   chan *Client
	Unregister chan *Client
	broadcast  chan broadcastRequest

	// done is closed when the loop exits and replaced when it starts, so
	// a connection outliving the hub never blocks on Unregister.
	mu   sync.Mutex
	done chan struct{}
}

// NewHub creates a hub. store may be nil, in which case presence edges are
// not persisted to user records.
func NewHub(cfg config.GatewayConfig, store presenceStore) *Hub {
	return &Hub{
		cfg:        cfg,
		registry:   newRegistry(),
		store:      store,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan broadcastRequest, cfg.BroadcastBufferSize),
		done:       make(chan struct{}),
	}
}

// RunWithContext runs the hub loop until ctx is cancelled. Designed for
// suture supervision; on cancellation all clients are closed and ctx.Err()
// is returned.
//
// Priority order when multiple channels are ready:
//  1. Context cancellation
//  2. Client lifecycle (Register/Unregister)
//  3. Broadcasts
//
// Lifecycle-before-broadcast ensures a registering connection never misses
// an event already queued behind it, and a closed connection is never
// handed new frames.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.done = make(chan struct{})
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		close(h.done)
		h.mu.Unlock()
	}()

	for {
		// Priority 1: shutdown (non-blocking check)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.handleRegister(client)
			continue
		case client := <-h.Unregister:
			h.handleUnregister(client)
			continue
		default:
		}

		// Priority 3: broadcasts, or block until anything arrives
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.handleRegister(client)
		case client := <-h.Unregister:
			h.handleUnregister(client)
		case req := <-h.broadcast:
			h.fanout(req)
		}
	}
}

// handleRegister adds a connection and, on the user's online edge, fires
// exactly one user_status event. The connecting user's own connections are
// excluded from the online announcement; they learn their own presence
// implicitly by being connected.
func (h *Hub) handleRegister(client *Client) {
	firstConn := h.registry.add(client)

	metrics.GatewayConnections.Set(float64(h.registry.connectionCount()))
	metrics.GatewayOnlineUsers.Set(float64(h.registry.onlineUserCount()))

	logging.Info().
		Int64("user_id", client.userID).
		Uint64("client_id", client.id).
		Int("total_connections", h.registry.connectionCount()).
		Msg("Gateway client connected")

	if firstConn {
		h.presenceEdge(client.userID, models.StatusOnline, client.userID)
	}
}

// handleUnregister removes a connection and, on the user's offline edge,
// fires exactly one user_status event to everyone still connected. A
// connection the registry does not know is ignored, so double unregisters
// cannot produce spurious offline events.
func (h *Hub) handleUnregister(client *Client) {
	lastConn, known := h.registry.remove(client)
	if !known {
		return
	}
	close(client.send)

	metrics.GatewayConnections.Set(float64(h.registry.connectionCount()))
	metrics.GatewayOnlineUsers.Set(float64(h.registry.onlineUserCount()))

	logging.Info().
		Int64("user_id", client.userID).
		Uint64("client_id", client.id).
		Int("total_connections", h.registry.connectionCount()).
		Msg("Gateway client disconnected")

	if lastConn {
		h.presenceEdge(client.userID, models.StatusOffline, 0)
	}
}

// presenceEdge persists the user's new status and fans out one user_status
// event. Persistence failure is logged but does not suppress the event;
// presence is derived from live connections, not the stored status.
func (h *Hub) presenceEdge(userID int64, status string, excludeUserID int64) {
	if h.store != nil {
		if _, err := h.store.UpdateUserStatus(context.Background(), userID, status); err != nil {
			logging.Warn().Err(err).Int64("user_id", userID).Msg("Failed to persist presence status")
		}
	}

	event := &models.Event{
		Type:    models.EventUserStatus,
		Payload: models.UserStatusPayload{UserID: userID, Status: status},
	}
	frame, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal presence event")
		return
	}

	logging.Debug().Int64("user_id", userID).Str("status", status).Msg("Presence edge")
	h.fanout(broadcastRequest{eventType: models.EventUserStatus, frame: frame, excludeUserID: excludeUserID})
}

// BroadcastEvent queues an event for delivery to every connection,
// optionally excluding one user. The frame is marshaled once here so every
// recipient receives identical bytes. If the broadcast queue is full the
// event is dropped with a warning; delivery is fire-and-forget by contract.
func (h *Hub) BroadcastEvent(event *models.Event, excludeUserID int64) {
	frame, err := json.Marshal(event)
	if err != nil {
		logging.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to marshal event")
		return
	}

	select {
	case h.broadcast <- broadcastRequest{eventType: event.Type, frame: frame, excludeUserID: excludeUserID}:
	default:
		logging.Warn().Str("type", string(event.Type)).Msg("Broadcast queue full, dropping event")
	}
}

// fanout delivers one frame to every live connection in client-ID order. A
// connection whose send queue is full is closed and dropped; one bad
// connection never aborts delivery to the rest.
func (h *Hub) fanout(req broadcastRequest) {
	metrics.RecordBroadcast(string(req.eventType))

	var toRemove []*Client
	for _, client := range h.registry.snapshot(req.excludeUserID) {
		select {
		case client.send <- req.frame:
		default:
			metrics.GatewaySendsDropped.Inc()
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		logging.Warn().
			Int64("user_id", client.userID).
			Uint64("client_id", client.id).
			Msg("Client send queue full, dropping connection")
		h.handleUnregister(client)
	}
}

// Done returns a channel that is closed while the hub loop is not
// running. Client teardown selects against it alongside the Unregister
// send; under a supervised restart the loop drains the same channels
// again, so either branch resolves.
func (h *Hub) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// OnlineUserIDs returns the distinct users with at least one live
// connection. Used by the REST layer to report presence.
func (h *Hub) OnlineUserIDs() []int64 {
	return h.registry.onlineUserIDs()
}

// IsOnline reports whether a user has at least one live connection.
func (h *Hub) IsOnline(userID int64) bool {
	return h.registry.isOnline(userID)
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	return h.registry.connectionCount()
}

// logGracefulShutdown closes all clients and logs the shutdown. Context
// cancellation is expected behavior, so no error field is logged.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.registry.connectionCount()
	for _, client := range h.registry.snapshot(0) {
		h.handleUnregister(client)
	}

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}

	logging.Info().
		Str("component", "gateway-hub").
		Str("reason", string(reason)).
		Int("clients_closed", closed).
		Msg("Gateway hub stopped")
}
