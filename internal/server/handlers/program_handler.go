package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
	"github.com/mnuel1/chat-fieldiq/internal/service/program"
)

// ProgramHandler exposes feed program lifecycle and feed calculator routes.
type ProgramHandler struct {
	svc    *program.Service
	logger *zap.Logger
}

// NewProgramHandler constructs the HTTP handler adapter.
func NewProgramHandler(svc *program.Service, logger *zap.Logger) *ProgramHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramHandler{svc: svc, logger: logger}
}

type startProgramRequest struct {
	FarmerID       string `json:"farmer_id" binding:"required"`
	FeedProductID  string `json:"feed_product_id" binding:"required"`
	AnimalQuantity int    `json:"animal_quantity" binding:"required"`
}

// Start creates a new active feed program, demoting any prior active one.
func (h *ProgramHandler) Start(c *gin.Context) {
	var req startProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid start program payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.svc.StartProgram(c.Request.Context(), req.FarmerID, req.FeedProductID, req.AnimalQuantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusCreated, created)
}

// GetActive returns the farmer's active feed program with a fresh day counter.
func (h *ProgramHandler) GetActive(c *gin.Context) {
	active, err := h.svc.GetActiveProgram(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, active)
}

// ActiveFeedProduct returns the feed product joined to the active program.
// Data is null when the farmer has no active program.
func (h *ProgramHandler) ActiveFeedProduct(c *gin.Context) {
	product, err := h.svc.ActiveFeedProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, product)
}

// Complete ends the farmer's active program with the completed status.
func (h *ProgramHandler) Complete(c *gin.Context) {
	ended, err := h.svc.CompleteProgram(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, ended)
}

// Incomplete ends the farmer's active program with the incomplete status.
func (h *ProgramHandler) Incomplete(c *gin.Context) {
	ended, err := h.svc.MarkIncomplete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, ended)
}

// CreateFeedCalculation persists a feed calculator result.
func (h *ProgramHandler) CreateFeedCalculation(c *gin.Context) {
	var calc models.FeedCalculation
	if err := c.ShouldBindJSON(&calc); err != nil {
		h.logger.Warn("invalid feed calculation payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.svc.CreateFeedCalculation(c.Request.Context(), calc)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusCreated, created)
}

// GetFeedCalculation returns the farmer's current calculator log.
func (h *ProgramHandler) GetFeedCalculation(c *gin.Context) {
	calc, err := h.svc.GetFeedCalculation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, calc)
}

// UpdateFeedCalculation overwrites the farmer's calculator log fields.
func (h *ProgramHandler) UpdateFeedCalculation(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil || len(fields) == 0 {
		h.logger.Warn("invalid feed calculation update payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := h.svc.UpdateFeedCalculation(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, updated)
}
