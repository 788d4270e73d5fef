// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	a := GenerateRequestID()
	b := GenerateRequestID()
	if a == "" || b == "" {
		t.Fatal("empty request ID")
	}
	if a == b {
		t.Error("request IDs are not unique")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext = %q, want req-123", got)
	}
}

func TestRequestIDFromContextMissing(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty ID on bare context, got %q", got)
	}
}

func TestCtxAttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithRequestID(context.Background(), "req-456")
	Ctx(ctx).Info().Msg("with id")

	if !strings.Contains(buf.String(), `"request_id":"req-456"`) {
		t.Errorf("request_id missing from output: %q", buf.String())
	}
}

func TestCtxWithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	Ctx(context.Background()).Info().Msg("no id")

	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected request_id field: %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	logger := WithComponent("calls")
	logger.Info().Msg("component line")

	if !strings.Contains(buf.String(), `"component":"calls"`) {
		t.Errorf("component field missing: %q", buf.String())
	}
}
