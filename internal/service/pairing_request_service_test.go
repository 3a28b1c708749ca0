package service

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
)

func newLifecycleFixture(t *testing.T) (*PairingRequestService, *memoryStore, *recordingPublisher, *txProviderMock) {
	t.Helper()
	store := newMemoryStore()
	provider, _ := newTxProviderMock(t)
	events := &recordingPublisher{}
	svc := NewPairingRequestService(store, store.participantsRepo(), provider, nil, nil, NewMetricsService(), events, zap.NewNop())
	return svc, store, events, provider.(*txProviderMock)
}

func strPtr(v string) *string { return &v }

func TestCreateRequestDeduplicatesWindows(t *testing.T) {
	svc, store, events, _ := newLifecycleFixture(t)
	store.addParticipant("p1", 2, "")

	req, err := svc.CreateRequest(context.Background(), "p1", dto.CreatePairingRequest{
		Intent:  "OFFER",
		Subject: "  Math ",
		Windows: []string{"0-1", "0-1", " 2-3"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, "Math", req.Subject)
	assert.Equal(t, pq.StringArray{"0-1", "2-3"}, req.CandidateWindows)
	assert.Equal(t, []string{EventRequestCreated}, events.types())
	assert.Equal(t, models.RequestStatusPending, store.get(req.ID).Status)
}

func TestCreateRequestValidation(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.addParticipant("p1", 2, "")

	cases := map[string]dto.CreatePairingRequest{
		"no windows":     {Intent: "OFFER", Subject: "Math"},
		"unknown window": {Intent: "OFFER", Subject: "Math", Windows: []string{"9-9"}},
		"bad intent":     {Intent: "TEACH", Subject: "Math", Windows: []string{"0-1"}},
		"blank subject":  {Intent: "SEEK", Subject: "   ", Windows: []string{"0-1"}},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateRequest(context.Background(), "p1", payload)
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrValidation), err.Error())
		})
	}

	_, err := svc.CreateRequest(context.Background(), "ghost", dto.CreatePairingRequest{Intent: "SEEK", Subject: "Math", Windows: []string{"0-1"}})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestCreateRequestRejectsDuplicatePending(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.addParticipant("p1", 2, "")
	payload := dto.CreatePairingRequest{Intent: "SEEK", Subject: "Math", Windows: []string{"0-1"}}

	_, err := svc.CreateRequest(context.Background(), "p1", payload)
	require.NoError(t, err)
	_, err = svc.CreateRequest(context.Background(), "p1", payload)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateRequest))

	// Other intent or subject is fine.
	_, err = svc.CreateRequest(context.Background(), "p1", dto.CreatePairingRequest{Intent: "OFFER", Subject: "Math", Windows: []string{"0-1"}})
	require.NoError(t, err)
}

func TestCreateRequestMapsUniqueViolation(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.addParticipant("p1", 2, "")
	store.createErr = &pq.Error{Code: "23505"}

	_, err := svc.CreateRequest(context.Background(), "p1", dto.CreatePairingRequest{Intent: "SEEK", Subject: "Math", Windows: []string{"0-1"}})
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicateRequest))
}

func TestCancelPendingRequest(t *testing.T) {
	svc, store, events, provider := newLifecycleFixture(t)
	store.addParticipant("p1", 2, "")
	store.addRequest("r1", "p1", models.IntentSeek, "Math", "0-1")

	provider.mock.ExpectBegin()
	provider.mock.ExpectCommit()
	req, err := svc.CancelRequest(context.Background(), "r1", strPtr("p1"))
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, req.Status)
	assert.Equal(t, models.RequestStatusCancelled, store.get("r1").Status)
	assert.Equal(t, []string{EventRequestCancelled}, events.types())
	require.NoError(t, provider.mock.ExpectationsWereMet())
}

func TestCancelConfirmedCascadesToCounterpart(t *testing.T) {
	svc, store, events, provider := newLifecycleFixture(t)
	store.addParticipant("tutor", 3, "")
	store.addParticipant("learner", 2, "")
	store.addConfirmed("offer", "tutor", models.IntentOffer, "Math", "0-1", testAnchor, "learner")
	store.addConfirmed("seek", "learner", models.IntentSeek, "Math", "0-1", testAnchor, "tutor")
	// Same pair, other subject: must be left alone.
	store.addConfirmed("offer-art", "tutor", models.IntentOffer, "Art", "1-1", testAnchor, "learner")
	store.addConfirmed("seek-art", "learner", models.IntentSeek, "Art", "1-1", testAnchor, "tutor")

	provider.mock.ExpectBegin()
	provider.mock.ExpectCommit()
	_, err := svc.CancelRequest(context.Background(), "seek", strPtr("learner"))
	require.NoError(t, err)

	for _, id := range []string{"offer", "seek"} {
		req := store.get(id)
		assert.Equal(t, models.RequestStatusCancelled, req.Status, id)
		assert.Nil(t, req.PartnerID, id)
		require.NoError(t, req.Validate())
	}
	assert.Equal(t, models.RequestStatusConfirmed, store.get("offer-art").Status)
	assert.Equal(t, models.RequestStatusConfirmed, store.get("seek-art").Status)
	require.Len(t, events.events, 1)
	assert.ElementsMatch(t, []string{"seek", "offer"}, events.events[0].RequestIDs)
}

func TestCancelGuards(t *testing.T) {
	svc, store, _, provider := newLifecycleFixture(t)
	store.addParticipant("p1", 2, "")
	store.addRequest("r1", "p1", models.IntentSeek, "Math", "0-1")
	done := store.addConfirmed("r2", "p1", models.IntentSeek, "Art", "0-2", testAnchor, "p9")
	done.Status = models.RequestStatusCompleted
	done.PartnerID = nil
	store.requests["r2"] = done

	provider.mock.ExpectBegin()
	provider.mock.ExpectRollback()
	_, err := svc.CancelRequest(context.Background(), "r1", strPtr("intruder"))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	provider.mock.ExpectBegin()
	provider.mock.ExpectRollback()
	_, err = svc.CancelRequest(context.Background(), "r2", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	provider.mock.ExpectBegin()
	provider.mock.ExpectRollback()
	_, err = svc.CancelRequest(context.Background(), "missing", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	assert.Equal(t, models.RequestStatusPending, store.get("r1").Status)
	require.NoError(t, provider.mock.ExpectationsWereMet())
}

func TestCancelRollsBackWhenCounterpartSaveFails(t *testing.T) {
	svc, store, events, provider := newLifecycleFixture(t)
	store.addParticipant("tutor", 3, "")
	store.addParticipant("learner", 2, "")
	store.addConfirmed("offer", "tutor", models.IntentOffer, "Math", "0-1", testAnchor, "learner")
	store.addConfirmed("seek", "learner", models.IntentSeek, "Math", "0-1", testAnchor, "tutor")
	store.saveErr = errors.New("write failed")
	store.failSaveAt = 2

	provider.mock.ExpectBegin()
	provider.mock.ExpectRollback()
	_, err := svc.CancelRequest(context.Background(), "offer", nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.Empty(t, events.types())
	require.NoError(t, provider.mock.ExpectationsWereMet())
}

func TestDeleteOwnerCascade(t *testing.T) {
	svc, store, events, provider := newLifecycleFixture(t)
	store.addParticipant("leaving", 3, "")
	store.addParticipant("partner", 2, "")
	store.addParticipant("bystander", 2, "")
	store.addConfirmed("offer", "leaving", models.IntentOffer, "Math", "0-1", testAnchor, "partner")
	store.addConfirmed("seek", "partner", models.IntentSeek, "Math", "0-1", testAnchor, "leaving")
	store.addRequest("pending", "leaving", models.IntentSeek, "Art", "1-1")
	store.addRequest("other", "bystander", models.IntentSeek, "Art", "1-1")

	provider.mock.ExpectBegin()
	provider.mock.ExpectCommit()
	summary, err := svc.DeleteOwner(context.Background(), "leaving")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CancelledCounterparts)
	assert.Equal(t, int64(2), summary.DeletedRequests)

	remaining := store.all()
	require.Len(t, remaining, 2)
	for _, req := range remaining {
		assert.NotEqual(t, "leaving", req.OwnerID)
		if req.PartnerID != nil {
			assert.NotEqual(t, "leaving", *req.PartnerID)
		}
		require.NoError(t, req.Validate())
	}
	assert.Equal(t, models.RequestStatusCancelled, store.get("seek").Status)
	assert.Equal(t, models.RequestStatusPending, store.get("other").Status)
	_, err = store.participantsRepo().FindByID(context.Background(), nil, "leaving")
	assert.Error(t, err)
	assert.Equal(t, []string{EventParticipantDeleted}, events.types())
	assert.Contains(t, events.events[0].ParticipantIDs, "partner")
}

func TestDeleteOwnerRollsBackOnFailure(t *testing.T) {
	svc, store, _, provider := newLifecycleFixture(t)
	store.addParticipant("leaving", 3, "")
	store.clearErr = errors.New("lock timeout")

	provider.mock.ExpectBegin()
	provider.mock.ExpectRollback()
	_, err := svc.DeleteOwner(context.Background(), "leaving")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	_, err = store.participantsRepo().FindByID(context.Background(), nil, "leaving")
	assert.NoError(t, err)

	provider.mock.ExpectBegin()
	provider.mock.ExpectRollback()
	_, err = svc.DeleteOwner(context.Background(), "ghost")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	require.NoError(t, provider.mock.ExpectationsWereMet())
}

func TestArchiveOnlyTerminalRequests(t *testing.T) {
	svc, store, events, provider := newLifecycleFixture(t)
	store.addParticipant("p1", 2, "")
	store.addRequest("open", "p1", models.IntentSeek, "Math", "0-1")
	cancelled := store.addRequest("done", "p1", models.IntentSeek, "Art", "0-1")
	cancelled.Status = models.RequestStatusCancelled
	store.requests["done"] = cancelled

	provider.mock.ExpectBegin()
	provider.mock.ExpectRollback()
	_, err := svc.Archive(context.Background(), "open", strPtr("p1"))
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidState))

	provider.mock.ExpectBegin()
	provider.mock.ExpectCommit()
	req, err := svc.Archive(context.Background(), "done", strPtr("p1"))
	require.NoError(t, err)
	assert.True(t, req.Archived)
	assert.Equal(t, []string{EventRequestArchived}, events.types())

	list, err := svc.ListMine(context.Background(), "p1", dto.ListPairingRequestsQuery{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "open", list[0].ID)

	list, err = svc.ListMine(context.Background(), "p1", dto.ListPairingRequestsQuery{IncludeArchived: true, Status: "CANCELLED"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "done", list[0].ID)

	_, err = svc.ListMine(context.Background(), "p1", dto.ListPairingRequestsQuery{Status: "LOST"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestArchiveRejectsRowBreakingInvariants(t *testing.T) {
	svc, store, events, provider := newLifecycleFixture(t)
	store.addParticipant("p1", 2, "")
	broken := store.addRequest("broken", "p1", models.IntentSeek, "Math", "0-1")
	broken.Status = models.RequestStatusCancelled
	broken.PartnerID = strPtr("p2")
	store.requests["broken"] = broken

	provider.mock.ExpectBegin()
	provider.mock.ExpectRollback()
	_, err := svc.Archive(context.Background(), "broken", strPtr("p1"))
	require.Error(t, err)
	assert.False(t, store.get("broken").Archived)
	assert.Empty(t, events.types())
	require.NoError(t, provider.mock.ExpectationsWereMet())
}

func TestGetHidesForeignRequests(t *testing.T) {
	svc, store, _, _ := newLifecycleFixture(t)
	store.addConfirmed("r1", "owner", models.IntentOffer, "Math", "0-1", testAnchor, "partner")

	_, err := svc.Get(context.Background(), "r1", strPtr("owner"))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "r1", strPtr("partner"))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "r1", nil)
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "r1", strPtr("stranger"))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
