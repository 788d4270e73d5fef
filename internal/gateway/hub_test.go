// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package gateway

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/flixchat/flixchat/internal/config"
	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		SendBufferSize:      256,
		BroadcastBufferSize: 256,
		MaxMessageSize:      64 * 1024,
		WriteWait:           10 * time.Second,
		PongWait:            60 * time.Second,
		InboundRate:         100,
		InboundBurst:        100,
	}
}

// setupHub starts a hub with no presence store and stops it at test end.
func setupHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testGatewayConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(10 * time.Millisecond)
	return hub
}

// newFakeClient builds a client with no network connection. Frames land in
// its send channel.
func newFakeClient(hub *Hub, userID int64) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		send:   make(chan []byte, 256),
	}
}

func registerClient(hub *Hub, client *Client) {
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)
}

func unregisterClient(hub *Hub, client *Client) {
	hub.Unregister <- client
	time.Sleep(20 * time.Millisecond)
}

// receivedEvents drains and decodes everything queued on a client.
func receivedEvents(t *testing.T, client *Client) []models.Event {
	t.Helper()
	var events []models.Event
	for {
		select {
		case frame, ok := <-client.send:
			if !ok {
				return events
			}
			var event models.Event
			if err := json.Unmarshal(frame, &event); err != nil {
				t.Fatalf("failed to decode frame %q: %v", frame, err)
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func countStatusEvents(events []models.Event, userID int64, status string) int {
	count := 0
	for _, e := range events {
		if e.Type != models.EventUserStatus {
			continue
		}
		payload, ok := e.Payload.(map[string]interface{})
		if !ok {
			continue
		}
		if int64(payload["userId"].(float64)) == userID && payload["status"] == status {
			count++
		}
	}
	return count
}

func TestOnlineEdgeFiresOncePerUser(t *testing.T) {
	hub := setupHub(t)

	observer := newFakeClient(hub, 1)
	registerClient(hub, observer)

	// Two connections for the same user must produce exactly one online
	// announcement.
	first := newFakeClient(hub, 2)
	second := newFakeClient(hub, 2)
	registerClient(hub, first)
	registerClient(hub, second)

	events := receivedEvents(t, observer)
	if got := countStatusEvents(events, 2, models.StatusOnline); got != 1 {
		t.Errorf("expected exactly 1 online event for user 2, got %d (events: %+v)", got, events)
	}
}

func TestOnlineAnnouncementExcludesConnectingUser(t *testing.T) {
	hub := setupHub(t)

	observer := newFakeClient(hub, 1)
	registerClient(hub, observer)

	joining := newFakeClient(hub, 2)
	registerClient(hub, joining)

	if got := countStatusEvents(receivedEvents(t, joining), 2, models.StatusOnline); got != 0 {
		t.Errorf("connecting user should not receive its own online event, got %d", got)
	}
	if got := countStatusEvents(receivedEvents(t, observer), 2, models.StatusOnline); got != 1 {
		t.Errorf("observer expected 1 online event for user 2, got %d", got)
	}
}

func TestOfflineEdgeOnlyOnLastDisconnect(t *testing.T) {
	hub := setupHub(t)

	observer := newFakeClient(hub, 1)
	registerClient(hub, observer)

	first := newFakeClient(hub, 2)
	second := newFakeClient(hub, 2)
	registerClient(hub, first)
	registerClient(hub, second)

	unregisterClient(hub, first)
	if got := countStatusEvents(receivedEvents(t, observer), 2, models.StatusOffline); got != 0 {
		t.Errorf("no offline event expected while a connection remains, got %d", got)
	}

	unregisterClient(hub, second)
	if got := countStatusEvents(receivedEvents(t, observer), 2, models.StatusOffline); got != 1 {
		t.Errorf("expected exactly 1 offline event after last disconnect, got %d", got)
	}
}

func TestUnregisterUnknownClientIsNoOp(t *testing.T) {
	hub := setupHub(t)

	observer := newFakeClient(hub, 1)
	registerClient(hub, observer)

	stranger := newFakeClient(hub, 2)
	unregisterClient(hub, stranger)

	if got := countStatusEvents(receivedEvents(t, observer), 2, models.StatusOffline); got != 0 {
		t.Errorf("unknown client unregister must not fire an offline edge, got %d events", got)
	}
	if hub.ConnectionCount() != 1 {
		t.Errorf("expected 1 connection, got %d", hub.ConnectionCount())
	}
}

func TestBroadcastEventReachesAllConnections(t *testing.T) {
	hub := setupHub(t)

	alice := newFakeClient(hub, 1)
	bobTab1 := newFakeClient(hub, 2)
	bobTab2 := newFakeClient(hub, 2)
	for _, c := range []*Client{alice, bobTab1, bobTab2} {
		registerClient(hub, c)
	}
	for _, c := range []*Client{alice, bobTab1, bobTab2} {
		receivedEvents(t, c) // drain presence noise
	}

	hub.BroadcastEvent(&models.Event{
		Type:    models.EventNewMessage,
		Payload: models.Message{ID: 1, ChatID: 1, SenderID: 1, Content: "hi"},
	}, 0)
	time.Sleep(20 * time.Millisecond)

	for name, c := range map[string]*Client{"alice": alice, "bob tab 1": bobTab1, "bob tab 2": bobTab2} {
		events := receivedEvents(t, c)
		if len(events) != 1 || events[0].Type != models.EventNewMessage {
			t.Errorf("%s: expected 1 new_message, got %+v", name, events)
		}
	}
}

func TestBroadcastEventExcludesUser(t *testing.T) {
	hub := setupHub(t)

	alice := newFakeClient(hub, 1)
	bobTab1 := newFakeClient(hub, 2)
	bobTab2 := newFakeClient(hub, 2)
	for _, c := range []*Client{alice, bobTab1, bobTab2} {
		registerClient(hub, c)
		receivedEvents(t, c)
	}
	receivedEvents(t, alice)

	hub.BroadcastEvent(&models.Event{
		Type:    models.EventMessageRead,
		Payload: models.MessageReadPayload{ChatID: 1, ReaderID: 2},
	}, 2)
	time.Sleep(20 * time.Millisecond)

	if events := receivedEvents(t, alice); len(events) != 1 {
		t.Errorf("alice expected the event, got %+v", events)
	}
	// Every one of the excluded user's connections is skipped.
	if events := receivedEvents(t, bobTab1); len(events) != 0 {
		t.Errorf("excluded user tab 1 should receive nothing, got %+v", events)
	}
	if events := receivedEvents(t, bobTab2); len(events) != 0 {
		t.Errorf("excluded user tab 2 should receive nothing, got %+v", events)
	}
}

func TestBroadcastPreservesPerConnectionOrder(t *testing.T) {
	hub := setupHub(t)

	client := newFakeClient(hub, 1)
	registerClient(hub, client)

	for i := 1; i <= 10; i++ {
		hub.BroadcastEvent(&models.Event{
			Type:    models.EventNewMessage,
			Payload: models.Message{ID: int64(i), ChatID: 1, SenderID: 2, Content: "m"},
		}, 0)
	}
	time.Sleep(50 * time.Millisecond)

	events := receivedEvents(t, client)
	if len(events) != 10 {
		t.Fatalf("expected 10 events, got %d", len(events))
	}
	for i, e := range events {
		payload := e.Payload.(map[string]interface{})
		if id := int64(payload["id"].(float64)); id != int64(i+1) {
			t.Fatalf("event %d out of order: got message id %d", i, id)
		}
	}
}

func TestFullSendQueueDropsOnlyThatConnection(t *testing.T) {
	hub := setupHub(t)

	healthy := newFakeClient(hub, 1)
	stuck := newFakeClient(hub, 2)
	stuck.send = make(chan []byte) // unbuffered with no reader: always full
	registerClient(hub, healthy)
	registerClient(hub, stuck)
	receivedEvents(t, healthy)

	hub.BroadcastEvent(&models.Event{
		Type:    models.EventNewMessage,
		Payload: models.Message{ID: 1, ChatID: 1, SenderID: 3, Content: "hi"},
	}, 0)
	time.Sleep(20 * time.Millisecond)

	if events := receivedEvents(t, healthy); len(events) == 0 {
		t.Error("healthy connection should still receive the broadcast")
	}
	if hub.IsOnline(2) {
		t.Error("stuck connection should have been dropped")
	}
}

func TestOnlineUserIDs(t *testing.T) {
	hub := setupHub(t)

	for _, userID := range []int64{3, 1, 2, 2} {
		registerClient(hub, newFakeClient(hub, userID))
	}

	got := hub.OnlineUserIDs()
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestShutdownClosesAllClients(t *testing.T) {
	hub := NewHub(testGatewayConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	client := newFakeClient(hub, 1)
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}

	// Drain until the channel reports closed.
	for {
		if _, ok := <-client.send; !ok {
			break
		}
	}
	if hub.ConnectionCount() != 0 {
		t.Errorf("expected 0 connections after shutdown, got %d", hub.ConnectionCount())
	}
}

func TestUnregisterAfterHubStoppedDoesNotBlock(t *testing.T) {
	hub := NewHub(testGatewayConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	client := newFakeClient(hub, 1)
	hub.Register <- client
	time.Sleep(20 * time.Millisecond)

	cancel()
	<-done

	// The read pump's teardown path must return even though nothing will
	// ever drain the Unregister channel again.
	finished := make(chan struct{})
	go func() {
		client.unregister()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("unregister blocked after the hub stopped")
	}
}

func TestRegistrySnapshotOrderAndExclusion(t *testing.T) {
	r := newRegistry()
	hub := NewHub(testGatewayConfig(), nil)

	a := newFakeClient(hub, 1)
	b := newFakeClient(hub, 2)
	c := newFakeClient(hub, 1)
	for _, cl := range []*Client{b, a, c} {
		r.add(cl)
	}

	all := r.snapshot(0)
	if len(all) != 3 {
		t.Fatalf("expected 3 clients, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].id >= all[i].id {
			t.Error("snapshot not sorted by client ID")
		}
	}

	withoutUser1 := r.snapshot(1)
	if len(withoutUser1) != 1 || withoutUser1[0] != b {
		t.Errorf("expected only user 2's client, got %d clients", len(withoutUser1))
	}
}

func TestRegistryEdges(t *testing.T) {
	r := newRegistry()
	hub := NewHub(testGatewayConfig(), nil)

	first := newFakeClient(hub, 1)
	second := newFakeClient(hub, 1)

	if !r.add(first) {
		t.Error("first connection should be the online edge")
	}
	if r.add(second) {
		t.Error("second connection must not re-fire the online edge")
	}
	if r.add(second) {
		t.Error("duplicate add must not fire an edge")
	}

	if last, _ := r.remove(first); last {
		t.Error("removing one of two connections must not be the offline edge")
	}
	if last, known := r.remove(second); !last || !known {
		t.Error("removing the final connection should be the offline edge")
	}
	if _, known := r.remove(second); known {
		t.Error("double remove must not be treated as a known client")
	}
}
