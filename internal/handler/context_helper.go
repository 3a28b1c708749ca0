package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/peer-tutoring-api/internal/middleware"
	"github.com/noah-isme/peer-tutoring-api/internal/models"
	appErrors "github.com/noah-isme/peer-tutoring-api/pkg/errors"
	"github.com/noah-isme/peer-tutoring-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes a 401 and returns nil when the caller is anonymous.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return claims
}

// actorID returns nil for administrators so ownership checks are skipped.
func actorID(claims *models.JWTClaims) *string {
	if claims.Role == models.RoleAdmin {
		return nil
	}
	id := claims.UserID
	return &id
}
