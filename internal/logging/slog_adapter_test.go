// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newCapturedSlogLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := &SlogHandler{logger: NewTestLogger(&buf)}
	return slog.New(handler), &buf
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	logger, buf := newCapturedSlogLogger()
	logger.Info("service started", "name", "gateway-hub", "restarts", int64(3))

	out := buf.String()
	if !strings.Contains(out, `"message":"service started"`) {
		t.Errorf("message missing: %q", out)
	}
	if !strings.Contains(out, `"name":"gateway-hub"`) || !strings.Contains(out, `"restarts":3`) {
		t.Errorf("attributes missing: %q", out)
	}
}

func TestSlogHandlerLevels(t *testing.T) {
	// The debug record must clear zerolog's global level gate.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer Init(DefaultConfig())

	logger, buf := newCapturedSlogLogger()

	logger.Debug("d")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	out := buf.String()
	for _, want := range []string{`"level":"debug"`, `"level":"info"`, `"level":"warn"`, `"level":"error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %q", want, out)
		}
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	logger, buf := newCapturedSlogLogger()
	logger = logger.With("supervisor", "flixchat")
	logger.Info("event")

	if !strings.Contains(buf.String(), `"supervisor":"flixchat"`) {
		t.Errorf("pre-set attribute missing: %q", buf.String())
	}
}

func TestSlogHandlerWithGroup(t *testing.T) {
	logger, buf := newCapturedSlogLogger()
	logger = logger.WithGroup("tree")
	logger.Info("event", "service", "call-sweeper")

	if !strings.Contains(buf.String(), `"tree.service":"call-sweeper"`) {
		t.Errorf("group prefix missing: %q", buf.String())
	}
}

func TestSlogHandlerAttrKinds(t *testing.T) {
	logger, buf := newCapturedSlogLogger()
	logger.Info("kinds",
		"str", "s",
		"int", int64(-2),
		"uint", uint64(7),
		"float", 1.5,
		"bool", true,
		"dur", time.Second,
	)

	out := buf.String()
	for _, want := range []string{`"str":"s"`, `"int":-2`, `"uint":7`, `"float":1.5`, `"bool":true`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %q", want, out)
		}
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewSlogLoggerUsesGlobalOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	NewSlogLogger().Info("global sink")

	if !strings.Contains(buf.String(), "global sink") {
		t.Errorf("slog logger bypassed the global output: %q", buf.String())
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	handler := &SlogHandler{logger: NewTestLogger(&bytes.Buffer{}).Level(zerolog.WarnLevel)}
	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info enabled on a warn-level logger")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("error disabled on a warn-level logger")
	}
}
