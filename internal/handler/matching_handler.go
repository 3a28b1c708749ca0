package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/middleware"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	"github.com/noah-isme/peer-tutoring-api/pkg/response"
)

type matchingService interface {
	Preview(ctx context.Context) (*models.MatchingPreview, bool, error)
	PerformMatching(ctx context.Context) (int, []models.Pairing, error)
}

// MatchingHandler triggers and previews matching runs.
type MatchingHandler struct {
	service matchingService
}

// NewMatchingHandler constructs the handler.
func NewMatchingHandler(svc matchingService) *MatchingHandler {
	return &MatchingHandler{service: svc}
}

// Preview godoc
// @Summary Preview matching
// @Description Computes the pairings a run would confirm without persisting them
// @Tags Matching
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=dto.MatchingPreviewResponse}
// @Router /matching/preview [get]
func (h *MatchingHandler) Preview(c *gin.Context) {
	preview, cached, err := h.service.Preview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, dto.MatchingPreviewResponse{
		Pairings:    summarizePairings(preview.Pairings),
		TotalWeight: preview.TotalWeight,
		GeneratedAt: preview.GeneratedAt,
		Cached:      cached,
	}, nil, middleware.ExtractMeta(c))
}

// Run godoc
// @Summary Run matching
// @Description Confirms the maximum-weight set of pairings among pending requests
// @Tags Matching
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=dto.MatchingRunResponse}
// @Failure 500 {object} response.Envelope
// @Router /matching/run [post]
func (h *MatchingHandler) Run(c *gin.Context) {
	transitioned, pairings, err := h.service.PerformMatching(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.MatchingRunResponse{
		Transitioned: transitioned,
		Pairings:     summarizePairings(pairings),
	}, nil)
}

func summarizePairings(pairings []models.Pairing) []dto.PairingSummary {
	out := make([]dto.PairingSummary, 0, len(pairings))
	for _, p := range pairings {
		if p.Offer == nil || p.Seek == nil {
			continue
		}
		out = append(out, dto.PairingSummary{
			OfferRequestID: p.Offer.ID,
			SeekRequestID:  p.Seek.ID,
			TutorID:        p.Offer.OwnerID,
			LearnerID:      p.Seek.OwnerID,
			Subject:        p.Offer.Subject,
			Window:         p.Window,
			Weight:         p.Weight,
		})
	}
	return out
}
