// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package gateway

import (
	"sort"
	"sync"
)

// registry tracks the live WebSocket connections per user. A user may hold
// any number of concurrent connections (multiple tabs, multiple devices);
// presence is derived from the transition between zero and nonzero
// connections, never from the raw count.
type registry struct {
	mu      sync.RWMutex
	byUser  map[int64][]*Client
	clients map[*Client]bool
}

func newRegistry() *registry {
	return &registry{
		byUser:  make(map[int64][]*Client),
		clients: make(map[*Client]bool),
	}
}

// add registers a connection and reports whether it is the user's first
// live connection (the online edge). Adding the same client twice is a
// no-op.
func (r *registry) add(client *Client) (firstConn bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clients[client] {
		return false
	}
	r.clients[client] = true

	conns := r.byUser[client.userID]
	r.byUser[client.userID] = append(conns, client)
	return len(conns) == 0
}

// remove unregisters a connection and reports whether it was the user's
// last live connection (the offline edge). Removing an unknown client is a
// no-op and never reports an edge.
func (r *registry) remove(client *Client) (lastConn bool, known bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.clients[client] {
		return false, false
	}
	delete(r.clients, client)

	conns := r.byUser[client.userID]
	for i, c := range conns {
		if c == client {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.byUser, client.userID)
		return true, true
	}
	r.byUser[client.userID] = conns
	return false, true
}

// snapshot returns all connections in client-ID order, skipping every
// connection belonging to excludeUserID. Pass 0 to include everyone.
func (r *registry) snapshot(excludeUserID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		if excludeUserID != 0 && client.userID == excludeUserID {
			continue
		}
		clients = append(clients, client)
	}

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// onlineUserIDs returns the set of users with at least one live connection,
// in ascending order.
func (r *registry) onlineUserIDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// isOnline reports whether the user has at least one live connection.
func (r *registry) isOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// connectionCount returns the total number of live connections.
func (r *registry) connectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// onlineUserCount returns the number of distinct online users.
func (r *registry) onlineUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
