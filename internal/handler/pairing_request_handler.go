package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
	"github.com/noah-isme/peer-tutoring-api/pkg/response"
)

type pairingRequestService interface {
	CreateRequest(ctx context.Context, ownerID string, req dto.CreatePairingRequest) (*models.PairingRequest, error)
	CancelRequest(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error)
	Archive(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error)
	ListMine(ctx context.Context, ownerID string, query dto.ListPairingRequestsQuery) ([]models.PairingRequest, error)
	Get(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error)
}

// PairingRequestHandler exposes the request lifecycle.
type PairingRequestHandler struct {
	service pairingRequestService
}

// NewPairingRequestHandler constructs the handler.
func NewPairingRequestHandler(svc pairingRequestService) *PairingRequestHandler {
	return &PairingRequestHandler{service: svc}
}

// Create godoc
// @Summary Submit pairing request
// @Description Declares an intent to offer or seek help; the caller owns the request
// @Tags PairingRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreatePairingRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pairing-requests [post]
func (h *PairingRequestHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreatePairingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pairing request payload"))
		return
	}
	created, err := h.service.CreateRequest(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListMine godoc
// @Summary List own pairing requests
// @Tags PairingRequests
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, CONFIRMED, COMPLETED or CANCELLED"
// @Param includeArchived query bool false "Include archived requests"
// @Success 200 {object} response.Envelope
// @Router /pairing-requests [get]
func (h *PairingRequestHandler) ListMine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.ListPairingRequestsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.ListMine(c.Request.Context(), claims.UserID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get pairing request
// @Tags PairingRequests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pairing-requests/{id} [get]
func (h *PairingRequestHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), actorID(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Cancel godoc
// @Summary Cancel pairing request
// @Description Cancels a pending or confirmed request; a confirmed counterpart is cancelled too
// @Tags PairingRequests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pairing-requests/{id}/cancel [post]
func (h *PairingRequestHandler) Cancel(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	item, err := h.service.CancelRequest(c.Request.Context(), c.Param("id"), actorID(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Archive godoc
// @Summary Archive pairing request
// @Tags PairingRequests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pairing-requests/{id}/archive [post]
func (h *PairingRequestHandler) Archive(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	item, err := h.service.Archive(c.Request.Context(), c.Param("id"), actorID(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
