package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peer-tutoring-api/internal/dto"
	"github.com/noah-isme/peer-tutoring-api/internal/middleware"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
)

type pairingRequestServiceMock struct {
	created    *models.PairingRequest
	createErr  error
	cancelErr  error
	lastOwner  string
	lastActor  *string
	lastQuery  dto.ListPairingRequestsQuery
	lastCreate dto.CreatePairingRequest
	calls      []string
}

func (m *pairingRequestServiceMock) CreateRequest(ctx context.Context, ownerID string, req dto.CreatePairingRequest) (*models.PairingRequest, error) {
	m.calls = append(m.calls, "create")
	m.lastOwner = ownerID
	m.lastCreate = req
	return m.created, m.createErr
}

func (m *pairingRequestServiceMock) CancelRequest(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error) {
	m.calls = append(m.calls, "cancel:"+requestID)
	m.lastActor = actorID
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	return &models.PairingRequest{ID: requestID, Status: models.RequestStatusCancelled}, nil
}

func (m *pairingRequestServiceMock) Archive(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error) {
	m.calls = append(m.calls, "archive:"+requestID)
	m.lastActor = actorID
	return &models.PairingRequest{ID: requestID, Archived: true}, nil
}

func (m *pairingRequestServiceMock) ListMine(ctx context.Context, ownerID string, query dto.ListPairingRequestsQuery) ([]models.PairingRequest, error) {
	m.calls = append(m.calls, "list")
	m.lastOwner = ownerID
	m.lastQuery = query
	return []models.PairingRequest{{ID: "r-1"}}, nil
}

func (m *pairingRequestServiceMock) Get(ctx context.Context, requestID string, actorID *string) (*models.PairingRequest, error) {
	m.calls = append(m.calls, "get:"+requestID)
	m.lastActor = actorID
	return nil, appErrors.Clone(appErrors.ErrNotFound, "pairing request not found")
}

func newTestContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func participantClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleParticipant}
}

func TestPairingRequestHandlerCreateUsesCaller(t *testing.T) {
	mockSvc := &pairingRequestServiceMock{created: &models.PairingRequest{ID: "r-9", Status: models.RequestStatusPending}}
	h := NewPairingRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/pairing-requests", `{"intent":"OFFER","subject":"Math","windows":["0-1","0-2"]}`, participantClaims("p-1"))
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "p-1", mockSvc.lastOwner)
	assert.Equal(t, []string{"0-1", "0-2"}, mockSvc.lastCreate.Windows)

	var body struct {
		Data models.PairingRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "r-9", body.Data.ID)
}

func TestPairingRequestHandlerCreateErrors(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		mockSvc := &pairingRequestServiceMock{}
		c, w := newTestContext(http.MethodPost, "/pairing-requests", `{}`, nil)
		NewPairingRequestHandler(mockSvc).Create(c)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, mockSvc.calls)
	})

	t.Run("malformed body", func(t *testing.T) {
		mockSvc := &pairingRequestServiceMock{}
		c, w := newTestContext(http.MethodPost, "/pairing-requests", `{"intent":`, participantClaims("p-1"))
		NewPairingRequestHandler(mockSvc).Create(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, mockSvc.calls)
	})

	t.Run("duplicate", func(t *testing.T) {
		mockSvc := &pairingRequestServiceMock{createErr: appErrors.ErrDuplicateRequest}
		c, w := newTestContext(http.MethodPost, "/pairing-requests", `{"intent":"SEEK","subject":"Math","windows":["0-1"]}`, participantClaims("p-1"))
		NewPairingRequestHandler(mockSvc).Create(c)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "DUPLICATE_REQUEST")
	})
}

func TestPairingRequestHandlerCancelActor(t *testing.T) {
	mockSvc := &pairingRequestServiceMock{}
	h := NewPairingRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/pairing-requests/r-1/cancel", "", participantClaims("p-1"))
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	h.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastActor)
	assert.Equal(t, "p-1", *mockSvc.lastActor)

	c, w = newTestContext(http.MethodPost, "/pairing-requests/r-1/cancel", "", &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	h.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mockSvc.lastActor)
}

func TestPairingRequestHandlerCancelForbidden(t *testing.T) {
	mockSvc := &pairingRequestServiceMock{cancelErr: appErrors.ErrForbidden}
	c, w := newTestContext(http.MethodPost, "/pairing-requests/r-1/cancel", "", participantClaims("p-2"))
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}

	NewPairingRequestHandler(mockSvc).Cancel(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPairingRequestHandlerListMineBindsQuery(t *testing.T) {
	mockSvc := &pairingRequestServiceMock{}
	c, w := newTestContext(http.MethodGet, "/pairing-requests?status=CONFIRMED&includeArchived=true", "", participantClaims("p-3"))

	NewPairingRequestHandler(mockSvc).ListMine(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p-3", mockSvc.lastOwner)
	assert.Equal(t, "CONFIRMED", mockSvc.lastQuery.Status)
	assert.True(t, mockSvc.lastQuery.IncludeArchived)
}

func TestPairingRequestHandlerGetAndArchive(t *testing.T) {
	mockSvc := &pairingRequestServiceMock{}
	h := NewPairingRequestHandler(mockSvc)

	c, w := newTestContext(http.MethodGet, "/pairing-requests/r-7", "", participantClaims("p-1"))
	c.Params = gin.Params{{Key: "id", Value: "r-7"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newTestContext(http.MethodPost, "/pairing-requests/r-7/archive", "", participantClaims("p-1"))
	c.Params = gin.Params{{Key: "id", Value: "r-7"}}
	h.Archive(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"get:r-7", "archive:r-7"}, mockSvc.calls)
}
