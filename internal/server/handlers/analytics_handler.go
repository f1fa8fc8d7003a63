package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/service/analytics"
)

// AnalyticsHandler exposes the dashboard analytics routes.
type AnalyticsHandler struct {
	svc    *analytics.Service
	logger *zap.Logger
}

// NewAnalyticsHandler constructs the HTTP handler adapter.
func NewAnalyticsHandler(svc *analytics.Service, logger *zap.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{svc: svc, logger: logger}
}

// GrowthPerformance returns weight trends and flock survival for the
// farmer's active program.
func (h *AnalyticsHandler) GrowthPerformance(c *gin.Context) {
	report, err := h.svc.GrowthPerformance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, report)
}

// FeedIntakeBehavior returns the appetite score breakdown.
func (h *AnalyticsHandler) FeedIntakeBehavior(c *gin.Context) {
	report, err := h.svc.FeedIntakeBehavior(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, report)
}

// HealthWatch returns the health score and incident summary, optionally
// narrowed by a daily or weekly window.
func (h *AnalyticsHandler) HealthWatch(c *gin.Context) {
	filter := c.Query("filter")
	if filter == "all" {
		filter = ""
	}

	report, err := h.svc.HealthWatch(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, report)
}
