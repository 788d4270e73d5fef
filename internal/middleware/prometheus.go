// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package middleware provides HTTP middleware shared across the API:
// Prometheus instrumentation and request ID propagation.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flixchat/flixchat/internal/metrics"
)

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// PrometheusMetrics instruments a handler with request counters, duration
// histograms, and an in-flight gauge.
func PrometheusMetrics(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		wrapper := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(wrapper, r)

		duration := time.Since(start)
		metrics.RecordAPIRequest(r.Method, r.URL.Path, strconv.Itoa(wrapper.statusCode), duration)
	}
}
