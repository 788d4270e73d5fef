// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package calls

import (
	"context"
	"time"

	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/metrics"
	"github.com/flixchat/flixchat/internal/models"
	"github.com/flixchat/flixchat/internal/store"
)

// Sweeper marks calls that have rung past the timeout as missed. It runs as
// a supervised background service alongside the gateway hub.
type Sweeper struct {
	store       store.Store
	broadcaster Broadcaster
	ringTimeout time.Duration
	interval    time.Duration
	now         func() time.Time
}

// NewSweeper creates a sweeper. broadcaster may be nil in tests.
func NewSweeper(st store.Store, broadcaster Broadcaster, ringTimeout, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:       st,
		broadcaster: broadcaster,
		ringTimeout: ringTimeout,
		interval:    interval,
		now:         time.Now,
	}
}

// RunWithContext runs the sweep loop until ctx is cancelled.
func (s *Sweeper) RunWithContext(ctx context.Context) error {
	logging.Info().
		Dur("ring_timeout", s.ringTimeout).
		Dur("interval", s.interval).
		Msg("Call sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Call sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep marks every initiated call older than the ring timeout as missed
// and broadcasts call_missed for each. Errors are logged, not fatal; the
// next tick retries.
func (s *Sweeper) sweep(ctx context.Context) {
	ringing, err := s.store.ListCallsByStatus(ctx, models.CallStatusInitiated)
	if err != nil {
		logging.Error().Err(err).Msg("Call sweep: failed to list ringing calls")
		return
	}

	cutoff := s.now().UTC().Add(-s.ringTimeout)
	for i := range ringing {
		call := &ringing[i]
		if call.StartTime.After(cutoff) {
			continue
		}

		endTime := s.now().UTC()
		updated, err := s.store.UpdateCall(ctx, call.ID, func(c *models.Call) {
			// Re-check under the store's lock: the receiver may have
			// answered between the list and the update.
			if c.Status != models.CallStatusInitiated {
				return
			}
			c.Status = models.CallStatusMissed
			c.EndTime = &endTime
		})
		if err != nil {
			logging.Error().Err(err).Int64("call_id", call.ID).Msg("Call sweep: failed to update call")
			continue
		}
		if updated.Status != models.CallStatusMissed {
			continue
		}

		metrics.RecordCallTransition(models.CallStatusMissed)
		logging.Info().
			Int64("call_id", updated.ID).
			Int64("caller_id", updated.CallerID).
			Int64("receiver_id", updated.ReceiverID).
			Msg("Call marked missed")

		if s.broadcaster != nil {
			s.broadcaster.BroadcastEvent(&models.Event{Type: models.EventCallMissed, Payload: updated}, 0)
		}
	}
}
