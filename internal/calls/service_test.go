// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package calls

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/models"
	"github.com/flixchat/flixchat/internal/store"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// recordingBroadcaster captures broadcast events for assertions.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []models.Event
}

func (b *recordingBroadcaster) BroadcastEvent(event *models.Event, excludeUserID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, *event)
}

func (b *recordingBroadcaster) types() []models.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.EventType, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

func newTestService(t *testing.T) (*Service, *recordingBroadcaster, store.Store, int64, int64) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemStore()

	caller, err := st.CreateUser(ctx, &models.User{Username: "caller", Password: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	receiver, err := st.CreateUser(ctx, &models.User{Username: "receiver", Password: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	broadcaster := &recordingBroadcaster{}
	svc := NewService(st, broadcaster)
	return svc, broadcaster, st, caller.ID, receiver.ID
}

func initiateTestCall(t *testing.T, svc *Service, callerID, receiverID int64) *models.Call {
	t.Helper()
	call, err := svc.Initiate(context.Background(), callerID, &models.CreateCallRequest{
		ReceiverID: receiverID,
		Type:       models.CallTypeAudio,
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	return call
}

func TestInitiateCreatesRingingCall(t *testing.T) {
	svc, broadcaster, _, callerID, receiverID := newTestService(t)

	call := initiateTestCall(t, svc, callerID, receiverID)

	if call.Status != models.CallStatusInitiated {
		t.Errorf("expected status initiated, got %q", call.Status)
	}
	if call.EndTime != nil {
		t.Errorf("expected nil end time, got %v", call.EndTime)
	}
	got := broadcaster.types()
	if len(got) != 1 || got[0] != models.EventCallInitiated {
		t.Errorf("expected one call_initiated broadcast, got %v", got)
	}
}

func TestInitiateRejectsSelfCall(t *testing.T) {
	svc, _, _, callerID, _ := newTestService(t)

	_, err := svc.Initiate(context.Background(), callerID, &models.CreateCallRequest{
		ReceiverID: callerID,
		Type:       models.CallTypeAudio,
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for self-call, got %v", err)
	}
}

func TestReceiverAnswersCall(t *testing.T) {
	svc, broadcaster, _, callerID, receiverID := newTestService(t)
	call := initiateTestCall(t, svc, callerID, receiverID)

	answered, err := svc.Answer(context.Background(), call.ID, receiverID)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answered.Status != models.CallStatusAnswered {
		t.Errorf("expected status answered, got %q", answered.Status)
	}

	got := broadcaster.types()
	if len(got) != 2 || got[1] != models.EventCallAnswered {
		t.Errorf("expected call_answered broadcast, got %v", got)
	}
}

func TestCallerCannotAnswerOwnCall(t *testing.T) {
	svc, _, st, callerID, receiverID := newTestService(t)
	call := initiateTestCall(t, svc, callerID, receiverID)

	_, err := svc.Answer(context.Background(), call.ID, callerID)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	// Rejection must not mutate the record.
	stored, err := st.GetCall(context.Background(), call.ID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if stored.Status != models.CallStatusInitiated {
		t.Errorf("expected call still initiated after denied answer, got %q", stored.Status)
	}
}

func TestThirdPartyCannotTransitionCall(t *testing.T) {
	svc, _, st, callerID, receiverID := newTestService(t)
	outsider, err := st.CreateUser(context.Background(), &models.User{Username: "outsider", Password: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	call := initiateTestCall(t, svc, callerID, receiverID)

	if _, err := svc.Answer(context.Background(), call.ID, outsider.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for outsider answer, got %v", err)
	}
	if _, err := svc.End(context.Background(), call.ID, outsider.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for outsider end, got %v", err)
	}
}

func TestReceiverDeclinesCall(t *testing.T) {
	svc, _, _, callerID, receiverID := newTestService(t)
	call := initiateTestCall(t, svc, callerID, receiverID)

	declined, err := svc.Decline(context.Background(), call.ID, receiverID)
	if err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if declined.Status != models.CallStatusDeclined {
		t.Errorf("expected status declined, got %q", declined.Status)
	}
	if declined.EndTime == nil {
		t.Error("expected end time set on decline")
	}
}

func TestDeclinedCallIsTerminal(t *testing.T) {
	svc, _, _, callerID, receiverID := newTestService(t)
	call := initiateTestCall(t, svc, callerID, receiverID)

	if _, err := svc.Decline(context.Background(), call.ID, receiverID); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	if _, err := svc.Answer(context.Background(), call.ID, receiverID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState answering declined call, got %v", err)
	}
	if _, err := svc.End(context.Background(), call.ID, receiverID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState ending declined call, got %v", err)
	}
}

func TestEitherPartyEndsAnsweredCall(t *testing.T) {
	for _, tc := range []struct {
		name     string
		endparty string
	}{
		{"caller ends", "caller"},
		{"receiver ends", "receiver"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _, callerID, receiverID := newTestService(t)
			call := initiateTestCall(t, svc, callerID, receiverID)

			if _, err := svc.Answer(context.Background(), call.ID, receiverID); err != nil {
				t.Fatalf("Answer: %v", err)
			}

			ender := callerID
			if tc.endparty == "receiver" {
				ender = receiverID
			}

			ended, err := svc.End(context.Background(), call.ID, ender)
			if err != nil {
				t.Fatalf("End: %v", err)
			}
			if ended.Status != models.CallStatusEnded {
				t.Errorf("expected status ended, got %q", ended.Status)
			}
			if ended.EndTime == nil {
				t.Error("expected end time set")
			}
		})
	}
}

func TestEndBeforeAnswerIsInvalid(t *testing.T) {
	svc, _, _, callerID, receiverID := newTestService(t)
	call := initiateTestCall(t, svc, callerID, receiverID)

	if _, err := svc.End(context.Background(), call.ID, callerID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState ending ringing call, got %v", err)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	svc, broadcaster, _, callerID, receiverID := newTestService(t)
	call := initiateTestCall(t, svc, callerID, receiverID)

	if _, err := svc.Answer(context.Background(), call.ID, receiverID); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	first, err := svc.End(context.Background(), call.ID, callerID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}

	broadcastsBefore := len(broadcaster.types())

	second, err := svc.End(context.Background(), call.ID, receiverID)
	if err != nil {
		t.Fatalf("second End: %v", err)
	}
	if second.Status != models.CallStatusEnded {
		t.Errorf("expected status ended, got %q", second.Status)
	}
	if !second.EndTime.Equal(*first.EndTime) {
		t.Errorf("expected end time unchanged, got %v then %v", first.EndTime, second.EndTime)
	}
	if got := len(broadcaster.types()); got != broadcastsBefore {
		t.Errorf("expected no re-broadcast for idempotent end, got %d extra", got-broadcastsBefore)
	}
}

func TestGetRestrictedToParties(t *testing.T) {
	svc, _, st, callerID, receiverID := newTestService(t)
	outsider, err := st.CreateUser(context.Background(), &models.User{Username: "outsider", Password: "x"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	call := initiateTestCall(t, svc, callerID, receiverID)

	if _, err := svc.Get(context.Background(), call.ID, callerID); err != nil {
		t.Errorf("caller Get: %v", err)
	}
	if _, err := svc.Get(context.Background(), call.ID, receiverID); err != nil {
		t.Errorf("receiver Get: %v", err)
	}
	if _, err := svc.Get(context.Background(), call.ID, outsider.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied for outsider Get, got %v", err)
	}
}

func TestSweeperMarksStaleRingingCallsMissed(t *testing.T) {
	svc, broadcaster, st, callerID, receiverID := newTestService(t)
	call := initiateTestCall(t, svc, callerID, receiverID)

	sweeper := NewSweeper(st, broadcaster, time.Minute, time.Second)
	sweeper.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	sweeper.sweep(context.Background())

	stored, err := st.GetCall(context.Background(), call.ID)
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if stored.Status != models.CallStatusMissed {
		t.Errorf("expected status missed, got %q", stored.Status)
	}
	if stored.EndTime == nil {
		t.Error("expected end time set on missed call")
	}

	got := broadcaster.types()
	if got[len(got)-1] != models.EventCallMissed {
		t.Errorf("expected call_missed broadcast, got %v", got)
	}
}

func TestSweeperLeavesFreshAndAnsweredCallsAlone(t *testing.T) {
	svc, broadcaster, st, callerID, receiverID := newTestService(t)

	fresh := initiateTestCall(t, svc, callerID, receiverID)

	answered := initiateTestCall(t, svc, callerID, receiverID)
	if _, err := svc.Answer(context.Background(), answered.ID, receiverID); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	sweeper := NewSweeper(st, broadcaster, time.Minute, time.Second)
	sweeper.sweep(context.Background())

	for _, id := range []int64{fresh.ID, answered.ID} {
		stored, err := st.GetCall(context.Background(), id)
		if err != nil {
			t.Fatalf("GetCall: %v", err)
		}
		if stored.Status == models.CallStatusMissed {
			t.Errorf("call %d unexpectedly marked missed", id)
		}
	}
}
