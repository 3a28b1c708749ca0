package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/pkg/response"
)

type completionTicker interface {
	Tick(ctx context.Context) (int, error)
}

// CompletionHandler runs the completion job on demand.
type CompletionHandler struct {
	ticker completionTicker
	now    func() time.Time
}

// NewCompletionHandler constructs the handler.
func NewCompletionHandler(ticker completionTicker, now func() time.Time) *CompletionHandler {
	if now == nil {
		now = time.Now
	}
	return &CompletionHandler{ticker: ticker, now: now}
}

// Run godoc
// @Summary Complete elapsed sessions
// @Tags Completion
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope{data=dto.CompletionRunResponse}
// @Failure 500 {object} response.Envelope
// @Router /completion/run [post]
func (h *CompletionHandler) Run(c *gin.Context) {
	completed, err := h.ticker.Tick(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CompletionRunResponse{Completed: completed, RanAt: h.now().UTC()}, nil)
}
