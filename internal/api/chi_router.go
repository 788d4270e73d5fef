// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flixchat/flixchat/internal/auth"
	"github.com/flixchat/flixchat/internal/gateway"
	"github.com/flixchat/flixchat/internal/middleware"
)

// Router assembles the HTTP surface: REST routes, the metrics endpoint,
// and the WebSocket upgrade.
type Router struct {
	handler       *Handler
	authMW        *auth.Middleware
	chiMiddleware *ChiMiddleware
	wsHandler     http.HandlerFunc
}

// NewRouter builds the router from its components.
func NewRouter(handler *Handler, authMW *auth.Middleware, hub *gateway.Hub, eventRouter *gateway.Router) *Router {
	cfg := handler.cfg
	return &Router{
		handler: handler,
		authMW:  authMW,
		chiMiddleware: NewChiMiddleware(&ChiMiddlewareConfig{
			CORSAllowedOrigins:   cfg.Security.CORSOrigins,
			CORSAllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			CORSAllowedHeaders:   []string{"Content-Type", "Authorization"},
			CORSAllowCredentials: true,
			CORSMaxAge:           86400,
			RateLimitRequests:    cfg.Security.RateLimitRequests,
			RateLimitWindow:      cfg.Security.RateLimitWindow,
			RateLimitDisabled:    cfg.Security.RateLimitDisabled,
		}),
		wsHandler: gateway.ServeWS(hub, eventRouter, cfg.Security.CORSOrigins),
	}
}

// Setup wires all routes and returns the root handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	h := router.handler
	authenticate := router.authMW.Authenticate
	requireAdmin := router.authMW.RequireAdmin

	r.Route("/api/health", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/", h.Health)
	})

	// Credential endpoints carry the strict per-IP limiter.
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.With(router.chiMiddleware.RateLimitLogin()).Post("/register", h.Register)
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/login", h.Login)
		r.With(router.chiMiddleware.RateLimitLogin()).Post("/guest", h.GuestLogin)
		r.Post("/logout", h.Logout)
		r.Get("/me", authenticate(h.Me))
	})

	// Authenticated API.
	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/users", authenticate(h.ListUsers))
		r.Get("/users/online", authenticate(h.OnlineUsers))
		r.Get("/users/{id}", authenticate(h.GetUser))
		r.Get("/users/{id}/stories", authenticate(h.ListUserStories))
		r.Put("/users/me", authenticate(h.UpdateMe))

		r.Post("/chats", authenticate(h.CreateChat))
		r.Get("/chats", authenticate(h.ListChats))
		r.Get("/chats/{id}", authenticate(h.GetChat))
		r.Post("/chats/{id}/participants", authenticate(h.AddParticipant))
		r.Get("/chats/{id}/participants", authenticate(h.ListParticipants))
		r.Delete("/chats/{id}/participants/{userId}", authenticate(h.RemoveParticipant))
		r.Get("/chats/{id}/messages", authenticate(h.ListMessages))
		r.Post("/chats/{id}/read", authenticate(h.MarkRead))

		r.Post("/messages", authenticate(h.CreateMessage))
		r.Delete("/messages/{id}", authenticate(h.DeleteMessage))

		r.Post("/stories", authenticate(h.CreateStory))
		r.Get("/stories", authenticate(h.ListStories))
		r.Get("/stories/{id}", authenticate(h.GetStory))
		r.Delete("/stories/{id}", authenticate(h.DeleteStory))
		r.Get("/stories/{id}/views", authenticate(h.ListStoryViews))
		r.Post("/story-views", authenticate(h.CreateStoryView))

		r.Post("/calls", authenticate(h.CreateCall))
		r.Get("/calls", authenticate(h.ListCalls))
		r.Get("/calls/{id}", authenticate(h.GetCall))
		r.Put("/calls/{id}/answer", authenticate(h.AnswerCall))
		r.Put("/calls/{id}/decline", authenticate(h.DeclineCall))
		r.Put("/calls/{id}/end", authenticate(h.EndCall))

		r.Get("/admin/stats", authenticate(requireAdmin(h.AdminStats)))
		r.Delete("/admin/users/{id}", authenticate(requireAdmin(h.AdminDeleteUser)))
	})

	// WebSocket upgrade. Authenticated via the session cookie; browsers
	// cannot set Authorization headers on WebSocket connects.
	r.Get("/ws", router.authMW.Authenticate(router.wsHandler))

	// Prometheus scrape endpoint.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
