package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/peer-tutoring-api/internal/models"
	"github.com/noah-isme/peer-tutoring-api/internal/service"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
	"github.com/noah-isme/peer-tutoring-api/pkg/middleware/requestid"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

func newGuardedRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/participants/:id", JWT(validatorStub{claims: &models.JWTClaims{UserID: "p1", Role: models.RoleParticipant}}), RBAC(roles...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func perform(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	r := newGuardedRouter(string(models.RoleParticipant))

	assert.Equal(t, http.StatusUnauthorized, perform(r, "/participants/p1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/participants/p1", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "/participants/p1", "Bearer bad").Code)
	assert.Equal(t, http.StatusOK, perform(r, "/participants/p1", "Bearer good").Code)
}

func TestRBACSelfAndRoles(t *testing.T) {
	r := newGuardedRouter(string(models.RoleAdmin), SelfRole)

	assert.Equal(t, http.StatusOK, perform(r, "/participants/p1", "Bearer good").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, "/participants/p2", "Bearer good").Code)
}

func TestMetricsMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/metrics"))
	r.GET("/items/:id", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusTeapot)
	})

	require.Equal(t, http.StatusTeapot, perform(r, "/items/42", "").Code)
	require.Equal(t, http.StatusNotFound, perform(r, "/nowhere/1", "").Code)
	perform(r, "/metrics", "")

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/items/:id",status="418"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="unmatched",status="404"} 1`)
	assert.NotContains(t, body, `path="/metrics"`)
}

func TestAuditLogsSuccessfulMutations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.POST("/pairing-requests/:id/cancel", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "p1", Role: models.RoleParticipant})
		c.Next()
	}, Audit(zap.New(core), "pairing_request.cancel"), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	for _, id := range []string{"r-1", "missing"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pairing-requests/"+id+"/cancel", nil))
	}

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "pairing_request.cancel", fields["action"])
	assert.Equal(t, "r-1", fields["resource_id"])
	assert.Equal(t, "p1", fields["actor_id"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/preview", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/preview", nil)
	req.Header.Set(requestid.HeaderKey, "req-42")
	r.ServeHTTP(w, req)

	assert.Equal(t, map[string]interface{}{"request_id": "req-42", "cache_hit": true}, meta)
	assert.Nil(t, ExtractMeta(nil))
}
