// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package metrics provides Prometheus instrumentation for the FlixChat
// server: API request latency and throughput, gateway connection and fanout
// counters, and call lifecycle counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixchat_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flixchat_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flixchat_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Gateway metrics
	GatewayConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flixchat_gateway_connections",
			Help: "Current number of open WebSocket connections",
		},
	)

	GatewayOnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flixchat_gateway_online_users",
			Help: "Current number of distinct online users",
		},
	)

	GatewayEventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixchat_gateway_events_routed_total",
			Help: "Total number of inbound frames routed, by event type",
		},
		[]string{"type"},
	)

	GatewayEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixchat_gateway_events_dropped_total",
			Help: "Total number of inbound frames dropped, by reason",
		},
		[]string{"reason"}, // "unknown_type", "malformed", "validation", "persistence", "rate_limited"
	)

	GatewayBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixchat_gateway_broadcasts_total",
			Help: "Total number of events broadcast, by event type",
		},
		[]string{"type"},
	)

	GatewaySendsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flixchat_gateway_sends_dropped_total",
			Help: "Total number of per-client deliveries dropped (full or closed send queue)",
		},
	)

	// Call metrics
	CallTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixchat_call_transitions_total",
			Help: "Total number of call state transitions, by target status",
		},
		[]string{"status"},
	)

	CallTransitionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flixchat_call_transitions_rejected_total",
			Help: "Total number of rejected call transitions, by reason",
		},
		[]string{"reason"}, // "permission_denied", "invalid_state", "not_found"
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEventRouted records an inbound frame dispatched by the gateway.
func RecordEventRouted(eventType string) {
	GatewayEventsRouted.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records an inbound frame the gateway refused.
func RecordEventDropped(reason string) {
	GatewayEventsDropped.WithLabelValues(reason).Inc()
}

// RecordBroadcast records one event handed to the fanout loop.
func RecordBroadcast(eventType string) {
	GatewayBroadcasts.WithLabelValues(eventType).Inc()
}

// RecordCallTransition records a successful call state transition.
func RecordCallTransition(status string) {
	CallTransitions.WithLabelValues(status).Inc()
}

// RecordCallRejection records a rejected call transition.
func RecordCallRejection(reason string) {
	CallTransitionsRejected.WithLabelValues(reason).Inc()
}
