// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

// Package calls implements the call session state machine.
//
// A call moves through a strictly linear lifecycle:
//
//	initiated -> answered -> ended
//	initiated -> declined
//	initiated -> missed   (sweeper, after the ring timeout)
//
// declined, ended, and missed are terminal. Only the receiver may answer or
// decline; either party may end an answered call. Every successful
// transition is persisted first and then broadcast to all connected clients.
package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/metrics"
	"github.com/flixchat/flixchat/internal/models"
	"github.com/flixchat/flixchat/internal/store"
)

var (
	// ErrPermissionDenied is returned when a user attempts a transition
	// they are not a party to, or a role reserved for the other party.
	ErrPermissionDenied = errors.New("not permitted to modify this call")

	// ErrInvalidState is returned when the requested transition is not
	// legal from the call's current state.
	ErrInvalidState = errors.New("call is not in a state that allows this transition")
)

// Broadcaster delivers an event to every connected client, optionally
// excluding one user's connections. Implemented by the gateway hub.
type Broadcaster interface {
	BroadcastEvent(event *models.Event, excludeUserID int64)
}

// Service owns call lifecycle transitions.
type Service struct {
	store       store.Store
	broadcaster Broadcaster
	now         func() time.Time
}

// NewService creates a call service. broadcaster may be nil in tests.
func NewService(st store.Store, broadcaster Broadcaster) *Service {
	return &Service{
		store:       st,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// Initiate creates a new call in the initiated state and broadcasts
// call_initiated. Callers cannot call themselves.
func (s *Service) Initiate(ctx context.Context, callerID int64, req *models.CreateCallRequest) (*models.Call, error) {
	if req.ReceiverID == callerID {
		metrics.RecordCallRejection("invalid_state")
		return nil, fmt.Errorf("%w: cannot call yourself", ErrInvalidState)
	}
	if _, err := s.store.GetUser(ctx, req.ReceiverID); err != nil {
		return nil, fmt.Errorf("receiver lookup failed: %w", err)
	}

	call := &models.Call{
		CallerID:   callerID,
		ReceiverID: req.ReceiverID,
		ChatID:     req.ChatID,
		Type:       req.Type,
	}

	created, err := s.store.CreateCall(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	metrics.RecordCallTransition(models.CallStatusInitiated)
	logging.Ctx(ctx).Info().
		Int64("call_id", created.ID).
		Int64("caller_id", created.CallerID).
		Int64("receiver_id", created.ReceiverID).
		Str("type", created.Type).
		Msg("Call initiated")

	s.broadcast(models.EventCallInitiated, created)
	return created, nil
}

// Answer transitions an initiated call to answered. Only the receiver may
// answer.
func (s *Service) Answer(ctx context.Context, callID, userID int64) (*models.Call, error) {
	return s.transition(ctx, callID, userID, models.CallStatusAnswered, models.EventCallAnswered)
}

// Decline transitions an initiated call to declined. Only the receiver may
// decline.
func (s *Service) Decline(ctx context.Context, callID, userID int64) (*models.Call, error) {
	return s.transition(ctx, callID, userID, models.CallStatusDeclined, models.EventCallDeclined)
}

// End transitions an answered call to ended. Either party may end. Ending a
// call that is already ended is an idempotent no-op returning the record.
func (s *Service) End(ctx context.Context, callID, userID int64) (*models.Call, error) {
	return s.transition(ctx, callID, userID, models.CallStatusEnded, models.EventCallEnded)
}

// Get returns a call visible to userID. Users may only read calls they are
// a party to.
func (s *Service) Get(ctx context.Context, callID, userID int64) (*models.Call, error) {
	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.CallerID != userID && call.ReceiverID != userID {
		metrics.RecordCallRejection("permission_denied")
		return nil, ErrPermissionDenied
	}
	return call, nil
}

// ListForUser returns all calls where userID is caller or receiver.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]models.Call, error) {
	return s.store.ListCallsForUser(ctx, userID)
}

// transition applies one state change atomically. The permission check and
// state check both run against the current record before any mutation, so a
// rejected transition never modifies the call.
func (s *Service) transition(ctx context.Context, callID, userID int64, target string, eventType models.EventType) (*models.Call, error) {
	current, err := s.store.GetCall(ctx, callID)
	if err != nil {
		metrics.RecordCallRejection("not_found")
		return nil, err
	}

	if err := checkPermission(current, userID, target); err != nil {
		metrics.RecordCallRejection("permission_denied")
		return nil, err
	}

	// Ending an already-ended call succeeds without mutating or
	// re-broadcasting.
	if target == models.CallStatusEnded && current.Status == models.CallStatusEnded {
		return current, nil
	}

	if err := checkTransition(current.Status, target); err != nil {
		metrics.RecordCallRejection("invalid_state")
		return nil, err
	}

	endTime := s.now().UTC()
	updated, err := s.store.UpdateCall(ctx, callID, func(c *models.Call) {
		c.Status = target
		if target == models.CallStatusDeclined || target == models.CallStatusEnded {
			if c.EndTime == nil {
				c.EndTime = &endTime
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update call: %w", err)
	}

	metrics.RecordCallTransition(target)
	logging.Ctx(ctx).Info().
		Int64("call_id", updated.ID).
		Int64("user_id", userID).
		Str("status", target).
		Msg("Call transition")

	s.broadcast(eventType, updated)
	return updated, nil
}

// checkPermission enforces who may request each transition.
func checkPermission(call *models.Call, userID int64, target string) error {
	switch target {
	case models.CallStatusAnswered, models.CallStatusDeclined:
		if call.ReceiverID != userID {
			return ErrPermissionDenied
		}
	case models.CallStatusEnded:
		if call.CallerID != userID && call.ReceiverID != userID {
			return ErrPermissionDenied
		}
	default:
		return ErrPermissionDenied
	}
	return nil
}

// checkTransition enforces the legal state graph.
func checkTransition(from, to string) error {
	switch to {
	case models.CallStatusAnswered, models.CallStatusDeclined:
		if from != models.CallStatusInitiated {
			return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, from, to)
		}
	case models.CallStatusEnded:
		if from != models.CallStatusAnswered {
			return fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, from, to)
		}
	default:
		return fmt.Errorf("%w: unknown target state %s", ErrInvalidState, to)
	}
	return nil
}

// broadcast hands the persisted call record to the fanout layer. The event
// payload is the stored entity itself so that realtime and REST consumers
// see identical shapes.
func (s *Service) broadcast(eventType models.EventType, call *models.Call) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastEvent(&models.Event{Type: eventType, Payload: call}, 0)
}
