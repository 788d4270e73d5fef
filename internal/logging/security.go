// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is one security-relevant occurrence for the audit trail:
// logins, logouts, account changes.
type SecurityEvent struct {
	// Event names the occurrence, e.g. "login_success" or "user_deleted".
	Event string
	// UserID identifies the affected account, when known.
	UserID int64
	// Username is sanitized before logging.
	Username string
	// ActorID identifies who performed the action when it differs from the
	// affected account (admin operations).
	ActorID int64
	// IPAddress is the client address as reported by the router.
	IPAddress string
	// UserAgent is truncated before logging.
	UserAgent string
	// Success marks the outcome.
	Success bool
	// Reason carries the failure reason; logged only on failure.
	Reason string
}

// SecurityLogger writes the authentication audit trail. Usernames and
// failure reasons pass through sanitizers so hostile input cannot inject
// log lines or flood the output.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global output.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: With().Str("component", "security").Logger()}
}

// NewSecurityLoggerWithLogger creates a security logger on a custom logger,
// used by tests to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "security").Logger()}
}

// LogEvent writes one sanitized audit record.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info().Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.UserID != 0 {
		e = e.Int64("user_id", event.UserID)
	}
	if event.Username != "" {
		e = e.Str("username", SanitizeUsername(event.Username))
	}
	if event.ActorID != 0 {
		e = e.Int64("actor_id", event.ActorID)
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", truncateString(event.UserAgent, 100))
	}
	if event.Reason != "" && !event.Success {
		e = e.Str("reason", SanitizeReason(event.Reason))
	}

	e.Msg("")
}

// LogLoginSuccess records a successful login.
func (l *SecurityLogger) LogLoginSuccess(userID int64, username, ip, userAgent string) {
	l.LogEvent(&SecurityEvent{
		Event:     "login_success",
		UserID:    userID,
		Username:  username,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})
}

// LogLoginFailure records a failed login. The username is the one the
// caller claimed; it may not exist.
func (l *SecurityLogger) LogLoginFailure(username, ip, userAgent, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     "login_failure",
		Username:  username,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   false,
		Reason:    reason,
	})
}

// LogRegistration records a new account, guest accounts included.
func (l *SecurityLogger) LogRegistration(userID int64, username, ip string, guest bool) {
	event := "registration"
	if guest {
		event = "guest_login"
	}
	l.LogEvent(&SecurityEvent{
		Event:     event,
		UserID:    userID,
		Username:  username,
		IPAddress: ip,
		Success:   true,
	})
}

// LogLogout records a session termination.
func (l *SecurityLogger) LogLogout(userID int64, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "logout",
		UserID:    userID,
		IPAddress: ip,
		Success:   true,
	})
}

// LogUserDeleted records an admin deleting an account.
func (l *SecurityLogger) LogUserDeleted(adminID, userID int64, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "user_deleted",
		UserID:    userID,
		ActorID:   adminID,
		IPAddress: ip,
		Success:   true,
	})
}

// SanitizeUsername strips control characters and bounds the length so a
// hostile username cannot forge log lines.
func SanitizeUsername(username string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, username)
	return truncateString(cleaned, 64)
}

// SanitizeReason bounds and cleans a failure reason the same way.
func SanitizeReason(reason string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, reason)
	return truncateString(cleaned, 200)
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
