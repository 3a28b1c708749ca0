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

type participantService interface {
	Create(ctx context.Context, req dto.CreateParticipantRequest) (*models.Participant, error)
	List(ctx context.Context, query dto.ListParticipantsQuery) ([]models.Participant, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Participant, error)
}

type ownerDeleter interface {
	DeleteOwner(ctx context.Context, ownerID string) (*models.DeletionSummary, error)
}

// ParticipantHandler manages participant profiles.
type ParticipantHandler struct {
	participants participantService
	deleter      ownerDeleter
}

// NewParticipantHandler constructs the handler.
func NewParticipantHandler(participants participantService, deleter ownerDeleter) *ParticipantHandler {
	return &ParticipantHandler{participants: participants, deleter: deleter}
}

// Create godoc
// @Summary Register participant
// @Tags Participants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateParticipantRequest true "Participant payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /participants [post]
func (h *ParticipantHandler) Create(c *gin.Context) {
	var req dto.CreateParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid participant payload"))
		return
	}
	participant, err := h.participants.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, participant)
}

// List godoc
// @Summary List participants
// @Tags Participants
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or email contains"
// @Param role query string false "ADMIN or PARTICIPANT"
// @Param level query int false "Exact level"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /participants [get]
func (h *ParticipantHandler) List(c *gin.Context) {
	var query dto.ListParticipantsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	participants, pagination, err := h.participants.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participants, pagination)
}

// Get godoc
// @Summary Get participant
// @Tags Participants
// @Produce json
// @Security BearerAuth
// @Param id path string true "Participant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /participants/{id} [get]
func (h *ParticipantHandler) Get(c *gin.Context) {
	participant, err := h.participants.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, participant, nil)
}

// Delete godoc
// @Summary Delete participant
// @Description Removes the participant and every request they own, cancelling confirmed counterparts
// @Tags Participants
// @Produce json
// @Security BearerAuth
// @Param id path string true "Participant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /participants/{id} [delete]
func (h *ParticipantHandler) Delete(c *gin.Context) {
	summary, err := h.deleter.DeleteOwner(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeleteParticipantResponse{
		CancelledCounterparts: summary.CancelledCounterparts,
		ClearedReferences:     summary.ClearedReferences,
		DeletedRequests:       summary.DeletedRequests,
	}, nil)
}
