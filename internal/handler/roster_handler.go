package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peer-tutoring-api/internal/service"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
	"github.com/noah-isme/peer-tutoring-api/pkg/response"
)

type rosterExporter interface {
	Export(ctx context.Context, format string) (*service.RosterExport, error)
	Snapshot(ctx context.Context, format string) (*service.RosterSnapshot, error)
	OpenSnapshot(ctx context.Context, token string) (*service.RosterExport, error)
}

// RosterHandler downloads the confirmed pairing roster.
type RosterHandler struct {
	exporter rosterExporter
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(exporter rosterExporter) *RosterHandler {
	return &RosterHandler{exporter: exporter}
}

// Export godoc
// @Summary Export roster
// @Tags Pairings
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /pairings/roster [get]
func (h *RosterHandler) Export(c *gin.Context) {
	export, err := h.exporter.Export(c.Request.Context(), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, export.Filename, export.ContentType, export.Body)
}

// Snapshot godoc
// @Summary Store roster snapshot
// @Description Renders the roster, stores it and returns a signed download token
// @Tags Pairings
// @Produce json
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /pairings/roster/snapshots [post]
func (h *RosterHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.exporter.Snapshot(c.Request.Context(), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, snapshot, nil, map[string]interface{}{
		"download_path": "/pairings/roster/download?token=" + snapshot.Token,
	})
}

// Download godoc
// @Summary Download roster snapshot
// @Tags Pairings
// @Produce text/csv
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /pairings/roster/download [get]
func (h *RosterHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	export, err := h.exporter.OpenSnapshot(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, export.Filename, export.ContentType, export.Body)
}
