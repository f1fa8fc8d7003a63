package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/domain/fielderr"
)

// respondSuccess writes the standard success envelope.
func respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"message": "Success", "data": data})
}

// respondError maps domain errors onto HTTP status codes.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, fielderr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, fielderr.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, fielderr.ErrExtraction):
		logger.Warn("extraction failed", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
