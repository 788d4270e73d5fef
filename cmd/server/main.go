// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package main is the entry point for the FlixChat server.
//
// FlixChat is a self-hosted real-time messaging platform: direct and group
// chats, 24-hour stories, and audio/video call signaling, served over a
// REST API plus a WebSocket event stream.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables > YAML file > defaults (Koanf v2)
//  2. Store: the in-memory entity store, seeded with the admin account
//  3. Gateway: the WebSocket hub that tracks connections and fans out events
//  4. Calls: the call state machine and the missed-call sweeper
//  5. HTTP: chi router with REST handlers, /ws upgrade, and /metrics
//  6. Supervision: all long-running components run under a suture tree
//
// # Configuration
//
// Settings come from FLIXCHAT_-prefixed environment variables or a YAML
// file (flixchat.yaml, config/flixchat.yaml, /etc/flixchat/flixchat.yaml,
// or the path in FLIXCHAT_CONFIG). Required in production:
//
//	export FLIXCHAT_SECURITY_JWT_SECRET=$(openssl rand -base64 32)
//	export FLIXCHAT_SECURITY_ADMIN_USERNAME=admin
//	export FLIXCHAT_SECURITY_ADMIN_PASSWORD=secure-password
//	./flixchat
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the listener stops
// accepting connections, in-flight requests drain within the configured
// timeout, and the gateway closes every WebSocket client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/flixchat/flixchat/internal/api"
	"github.com/flixchat/flixchat/internal/auth"
	"github.com/flixchat/flixchat/internal/calls"
	"github.com/flixchat/flixchat/internal/config"
	"github.com/flixchat/flixchat/internal/gateway"
	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/models"
	"github.com/flixchat/flixchat/internal/store"
	"github.com/flixchat/flixchat/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("log_level", cfg.Logging.Level).
		Msg("Starting FlixChat server")

	st := store.NewMemStore(store.WithStoryTTL(cfg.Stories.TTL))
	hasher := auth.NewPasswordHasher(cfg.Security.BcryptCost)
	if err := seedAdmin(st, hasher, &cfg.Security); err != nil {
		return fmt.Errorf("seeding admin account: %w", err)
	}

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("initializing token manager: %w", err)
	}

	hub := gateway.NewHub(cfg.Gateway, st)
	callService := calls.NewService(st, hub)
	sweeper := calls.NewSweeper(st, hub, cfg.Calls.RingTimeout, cfg.Calls.SweepInterval)
	eventRouter := gateway.NewRouter(st, callService, hub)

	handler := api.NewHandler(st, hub, callService, jwtManager, hasher, cfg)
	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager), hub, eventRouter)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeConfig)
	tree.AddRealtimeService(supervisor.NewRunnerService("gateway-hub", hub))
	tree.AddRealtimeService(supervisor.NewRunnerService("call-sweeper", sweeper))
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service missed shutdown timeout")
		}
	}

	logging.Info().Msg("Server stopped")
	return nil
}

// seedAdmin creates the configured admin account if it does not exist yet.
// The password is only applied on first creation; changing it later means
// changing it through the application, not by restarting with new config.
func seedAdmin(st store.Store, hasher *auth.PasswordHasher, sec *config.SecurityConfig) error {
	if sec.AdminUsername == "" || sec.AdminPassword == "" {
		logging.Warn().Msg("No admin credentials configured, skipping admin seed")
		return nil
	}

	ctx := context.Background()
	if _, err := st.GetUserByUsername(ctx, sec.AdminUsername); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := hasher.Hash(sec.AdminPassword)
	if err != nil {
		return err
	}
	admin, err := st.CreateUser(ctx, &models.User{
		Username: sec.AdminUsername,
		Password: hash,
		FullName: "Administrator",
		Role:     models.RoleAdmin,
		Status:   models.StatusOffline,
	})
	if err != nil {
		return err
	}

	logging.Info().Int64("user_id", admin.ID).Str("username", admin.Username).Msg("Seeded admin account")
	return nil
}
