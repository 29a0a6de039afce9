package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labflow/internal/model"
	"labflow/pkg/apperr"
	"labflow/pkg/logger"
)

// respondError maps the error taxonomy onto HTTP statuses. Dependency
// failures and unclassified errors go to the audit log; 4xx outcomes are
// the caller's problem and stay quiet.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsForbidden(err):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case apperr.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retryable": true})
	case apperr.IsDependency(err):
		logger.WithTrace(c.Request.Context(), log).Error("Dependency failure", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream dependency unavailable"})
	default:
		logger.WithTrace(c.Request.Context(), log).Error("Internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// actorFrom reads the authenticated actor the auth middleware stored.
func actorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get("actor")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid actor"})
		return model.Actor{}, false
	}
	return actor, true
}
