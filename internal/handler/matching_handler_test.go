package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
)

type matchingServiceMock struct {
	preview  *models.MatchingPreview
	cached   bool
	pairings []models.Pairing
	runErr   error
}

func (m *matchingServiceMock) Preview(ctx context.Context) (*models.MatchingPreview, bool, error) {
	return m.preview, m.cached, nil
}

func (m *matchingServiceMock) PerformMatching(ctx context.Context) (int, []models.Pairing, error) {
	if m.runErr != nil {
		return 0, nil, m.runErr
	}
	return 2 * len(m.pairings), m.pairings, nil
}

func samplePairing() models.Pairing {
	return models.Pairing{
		Offer:  &models.PairingRequest{ID: "offer-1", OwnerID: "tutor", Subject: "Math"},
		Seek:   &models.PairingRequest{ID: "seek-1", OwnerID: "learner", Subject: "Math"},
		Window: "1-2",
		Weight: 180,
	}
}

func TestMatchingHandlerRun(t *testing.T) {
	h := NewMatchingHandler(&matchingServiceMock{pairings: []models.Pairing{samplePairing()}})
	c, w := newTestContext(http.MethodPost, "/matching/run", "", &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	h.Run(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data dto.MatchingRunResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.Transitioned)
	require.Len(t, body.Data.Pairings, 1)
	assert.Equal(t, dto.PairingSummary{
		OfferRequestID: "offer-1",
		SeekRequestID:  "seek-1",
		TutorID:        "tutor",
		LearnerID:      "learner",
		Subject:        "Math",
		Window:         "1-2",
		Weight:         180,
	}, body.Data.Pairings[0])
}

func TestMatchingHandlerRunFailure(t *testing.T) {
	runErr := appErrors.Wrap(errors.New("deadlock"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to perform matching")
	h := NewMatchingHandler(&matchingServiceMock{runErr: runErr})
	c, w := newTestContext(http.MethodPost, "/matching/run", "", nil)

	h.Run(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMatchingHandlerPreviewReportsCacheHit(t *testing.T) {
	generated := time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC)
	h := NewMatchingHandler(&matchingServiceMock{
		preview: &models.MatchingPreview{Pairings: []models.Pairing{samplePairing()}, TotalWeight: 180, GeneratedAt: generated},
		cached:  true,
	})
	c, w := newTestContext(http.MethodGet, "/matching/preview", "", nil)

	h.Preview(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data dto.MatchingPreviewResponse `json:"data"`
		Meta map[string]interface{}      `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.Cached)
	assert.Equal(t, true, body.Meta["cache_hit"])
	assert.Equal(t, 180, body.Data.TotalWeight)
	assert.True(t, generated.Equal(body.Data.GeneratedAt))
	assert.Len(t, body.Data.Pairings, 1)
}

func TestSummarizePairingsSkipsIncomplete(t *testing.T) {
	out := summarizePairings([]models.Pairing{{Window: "0-1"}, samplePairing()})
	require.Len(t, out, 1)
	assert.Equal(t, "offer-1", out[0].OfferRequestID)
	assert.NotNil(t, summarizePairings(nil))
}
