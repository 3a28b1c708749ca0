package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/timeslot"
	"github.com/noah-isme/peer-tutoring-api/pkg/response"
)

type windowCatalog interface {
	Days() []string
	Periods() []timeslot.PeriodEnd
	Codes() []string
	Location() *time.Location
}

// TimeslotHandler exposes the configured window catalog.
type TimeslotHandler struct {
	catalog windowCatalog
}

// NewTimeslotHandler constructs the handler.
func NewTimeslotHandler(catalog windowCatalog) *TimeslotHandler {
	return &TimeslotHandler{catalog: catalog}
}

// List godoc
// @Summary List window codes
// @Tags Timeslots
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=dto.TimeslotCatalogResponse}
// @Router /timeslots [get]
func (h *TimeslotHandler) List(c *gin.Context) {
	periods := h.catalog.Periods()
	ends := make([]string, 0, len(periods))
	for _, p := range periods {
		ends = append(ends, p.String())
	}
	response.JSON(c, http.StatusOK, dto.TimeslotCatalogResponse{
		Days:       h.catalog.Days(),
		PeriodEnds: ends,
		Windows:    h.catalog.Codes(),
		Location:   h.catalog.Location().String(),
	}, nil)
}
