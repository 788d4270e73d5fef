// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/flixchat/flixchat/internal/auth"
	"github.com/flixchat/flixchat/internal/calls"
	"github.com/flixchat/flixchat/internal/config"
	"github.com/flixchat/flixchat/internal/gateway"
	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/models"
	"github.com/flixchat/flixchat/internal/store"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

type testServer struct {
	srv   *httptest.Server
	store store.Store
	hub   *gateway.Hub
	jwt   *auth.JWTManager
	cfg   *config.Config
}

func (ts *testServer) storyTTL() time.Duration {
	return ts.cfg.Stories.TTL
}

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{
			JWTSecret:         "0123456789abcdef0123456789abcdef",
			SessionTimeout:    time.Hour,
			BcryptCost:        4,
			RateLimitDisabled: true,
		},
		Gateway: config.GatewayConfig{
			SendBufferSize:      256,
			BroadcastBufferSize: 256,
			MaxMessageSize:      64 * 1024,
			WriteWait:           10 * time.Second,
			PongWait:            60 * time.Second,
			InboundRate:         100,
			InboundBurst:        100,
		},
		Calls:   config.CallsConfig{RingTimeout: time.Minute, SweepInterval: time.Second},
		Stories: config.StoriesConfig{TTL: 24 * time.Hour},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := testConfig()

	st := store.NewMemStore(store.WithStoryTTL(cfg.Stories.TTL))
	hub := gateway.NewHub(cfg.Gateway, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.RunWithContext(ctx)
		close(done)
	}()

	callService := calls.NewService(st, hub)
	eventRouter := gateway.NewRouter(st, callService, hub)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)

	handler := NewHandler(st, hub, callService, jwtManager, hasher, cfg)
	router := NewRouter(handler, auth.NewMiddleware(jwtManager), hub, eventRouter)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	return &testServer{srv: srv, store: st, hub: hub, jwt: jwtManager, cfg: cfg}
}

// do issues a request with an optional bearer token and decodes the
// response envelope.
func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, models.APIResponse) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, reqBody)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var envelope models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response for %s %s: %v", method, path, err)
	}
	return resp.StatusCode, envelope
}

// registerUser creates an account through the API and returns its token
// and user ID.
func (ts *testServer) registerUser(t *testing.T, username string) (string, int64) {
	t.Helper()
	status, envelope := ts.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: username,
		Password: "password123",
		FullName: "Test " + username,
	})
	if status != http.StatusOK {
		t.Fatalf("register %s: status %d (%+v)", username, status, envelope.Error)
	}

	var login models.LoginResponse
	remarshal(t, envelope.Data, &login)
	return login.Token, login.User.ID
}

// remarshal converts the envelope's generic Data into a typed value.
func remarshal(t *testing.T, data interface{}, into interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("remarshal: %v", err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		t.Fatalf("remarshal: %v", err)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	ts := newTestServer(t)

	token, userID := ts.registerUser(t, "alice")
	if token == "" || userID == 0 {
		t.Fatal("expected token and user ID from registration")
	}

	status, envelope := ts.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "alice",
		Password: "password123",
	})
	if status != http.StatusOK {
		t.Fatalf("login: status %d", status)
	}

	var login models.LoginResponse
	remarshal(t, envelope.Data, &login)
	if login.User.Username != "alice" {
		t.Errorf("expected username alice, got %q", login.User.Username)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ts := newTestServer(t)
	ts.registerUser(t, "alice")

	status, envelope := ts.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: "alice",
		Password: "password123",
		FullName: "Second Alice",
	})
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "CONFLICT" {
		t.Errorf("expected CONFLICT code, got %+v", envelope.Error)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.registerUser(t, "alice")

	status, envelope := ts.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "alice",
		Password: "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "AUTHENTICATION_ERROR" {
		t.Errorf("expected AUTHENTICATION_ERROR, got %+v", envelope.Error)
	}
}

func TestLoginUnknownUserSameResponseAsWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.registerUser(t, "alice")

	statusUnknown, envUnknown := ts.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "nobody",
		Password: "password123",
	})
	statusWrong, envWrong := ts.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{
		Username: "alice",
		Password: "wrong-password",
	})

	if statusUnknown != statusWrong {
		t.Errorf("account enumeration: statuses differ (%d vs %d)", statusUnknown, statusWrong)
	}
	if envUnknown.Error.Message != envWrong.Error.Message {
		t.Errorf("account enumeration: messages differ (%q vs %q)", envUnknown.Error.Message, envWrong.Error.Message)
	}
}

func TestGuestLogin(t *testing.T) {
	ts := newTestServer(t)

	status, envelope := ts.do(t, http.MethodPost, "/api/auth/guest", "", models.GuestLoginRequest{
		FullName: "Drive By",
	})
	if status != http.StatusOK {
		t.Fatalf("guest login: status %d", status)
	}

	var login models.LoginResponse
	remarshal(t, envelope.Data, &login)
	if !login.User.IsGuest {
		t.Error("expected guest flag set")
	}
	if login.Token == "" {
		t.Error("expected a session token")
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodGet, "/api/chats", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", status)
	}
}

func TestRegisterRejectsInvalidPayload(t *testing.T) {
	ts := newTestServer(t)

	status, envelope := ts.do(t, http.MethodPost, "/api/auth/register", "", models.RegisterRequest{
		Username: "ab", // too short
		Password: "short",
		FullName: "",
	})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
	if envelope.Error == nil || envelope.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %+v", envelope.Error)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	status, envelope := ts.do(t, http.MethodGet, "/api/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health: status %d", status)
	}
	var health struct {
		Status string `json:"status"`
	}
	remarshal(t, envelope.Data, &health)
	if health.Status != "ok" {
		t.Errorf("expected ok, got %q", health.Status)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("go_goroutines")) {
		t.Error("expected Prometheus metrics output")
	}
}

func TestAdminStatsRequiresAdminRole(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerUser(t, "alice")

	status, _ := ts.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", status)
	}

	// Promote directly in the store, then re-issue a token with the role.
	admin, err := ts.store.CreateUser(context.Background(), &models.User{
		Username: "admin", Password: "x", Role: models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	adminToken, _, err := ts.jwt.GenerateToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	status, envelope := ts.do(t, http.MethodGet, "/api/admin/stats", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("admin stats: status %d", status)
	}
	var stats models.AdminStats
	remarshal(t, envelope.Data, &stats)
	if stats.Users < 2 {
		t.Errorf("expected at least 2 users in stats, got %d", stats.Users)
	}
}

// createChat is a helper building a chat between two users.
func (ts *testServer) createChat(t *testing.T, token string, participantIDs ...int64) models.Chat {
	t.Helper()
	status, envelope := ts.do(t, http.MethodPost, "/api/chats", token, models.CreateChatRequest{
		Type:           models.ChatTypeDirect,
		ParticipantIDs: participantIDs,
	})
	if status != http.StatusCreated {
		t.Fatalf("create chat: status %d (%+v)", status, envelope.Error)
	}
	var chat models.Chat
	remarshal(t, envelope.Data, &chat)
	return chat
}

func TestChatAndMessageFlow(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, _ := ts.registerUser(t, "alice")
	bobToken, bobID := ts.registerUser(t, "bob")

	chat := ts.createChat(t, aliceToken, bobID)

	status, envelope := ts.do(t, http.MethodPost, "/api/messages", aliceToken, models.CreateMessageRequest{
		ChatID:  chat.ID,
		Content: "hello bob",
	})
	if status != http.StatusCreated {
		t.Fatalf("create message: status %d (%+v)", status, envelope.Error)
	}
	var msg models.Message
	remarshal(t, envelope.Data, &msg)
	if msg.ID == 0 || msg.CreatedAt.IsZero() {
		t.Error("expected server-assigned ID and timestamp")
	}

	// Bob, a participant, can read the chat.
	status, envelope = ts.do(t, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", chat.ID), bobToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list messages: status %d", status)
	}
	var messages []models.Message
	remarshal(t, envelope.Data, &messages)
	if len(messages) != 1 || messages[0].Content != "hello bob" {
		t.Errorf("expected the posted message, got %+v", messages)
	}
}

func TestNonParticipantCannotReadOrPost(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, _ := ts.registerUser(t, "alice")
	_, bobID := ts.registerUser(t, "bob")
	malloryToken, _ := ts.registerUser(t, "mallory")

	chat := ts.createChat(t, aliceToken, bobID)

	status, _ := ts.do(t, http.MethodGet, fmt.Sprintf("/api/chats/%d/messages", chat.ID), malloryToken, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 reading as non-participant, got %d", status)
	}

	status, _ = ts.do(t, http.MethodPost, "/api/messages", malloryToken, models.CreateMessageRequest{
		ChatID:  chat.ID,
		Content: "let me in",
	})
	if status != http.StatusForbidden {
		t.Errorf("expected 403 posting as non-participant, got %d", status)
	}
}

func TestDeleteMessageTombstone(t *testing.T) {
	ts := newTestServer(t)
	aliceToken, _ := ts.registerUser(t, "alice")
	bobToken, bobID := ts.registerUser(t, "bob")

	chat := ts.createChat(t, aliceToken, bobID)
	_, envelope := ts.do(t, http.MethodPost, "/api/messages", aliceToken, models.CreateMessageRequest{
		ChatID:  chat.ID,
		Content: "regrettable",
	})
	var msg models.Message
	remarshal(t, envelope.Data, &msg)

	// Only the sender can delete.
	status, _ := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", msg.ID), bobToken, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 deleting another user's message, got %d", status)
	}

	status, envelope = ts.do(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", msg.ID), aliceToken, nil)
	if status != http.StatusOK {
		t.Fatalf("delete message: status %d", status)
	}
	var deleted models.Message
	remarshal(t, envelope.Data, &deleted)
	if !deleted.IsDeleted || deleted.Content != "" {
		t.Errorf("expected tombstone, got %+v", deleted)
	}
}
