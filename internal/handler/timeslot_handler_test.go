package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/timeslot"
)

func TestTimeslotHandlerList(t *testing.T) {
	catalog := timeslot.MustCatalog([]string{"MON", "TUE"}, []string{"09:00", "10:30"}, time.UTC)
	h := NewTimeslotHandler(catalog)
	c, w := newTestContext(http.MethodGet, "/timeslots", "", participantClaims("p1"))

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data dto.TimeslotCatalogResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"MON", "TUE"}, body.Data.Days)
	assert.Equal(t, []string{"09:00", "10:30"}, body.Data.PeriodEnds)
	assert.Equal(t, []string{"MON-1", "MON-2", "TUE-1", "TUE-2"}, body.Data.Windows)
	assert.Equal(t, "UTC", body.Data.Location)
}
