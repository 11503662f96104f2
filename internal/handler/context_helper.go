package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/club-collab-api/internal/middleware"
	"github.com/noah-isme/club-collab-api/internal/models"
	appErrors "github.com/noah-isme/club-collab-api/pkg/errors"
)

func currentClaims(c *gin.Context) (*models.JWTClaims, error) {
	raw, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, appErrors.ErrUnauthorized
	}
	claims, ok := raw.(*models.JWTClaims)
	if !ok {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid "+name)
	}
	return id, nil
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
