package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mnuel1/chat-fieldiq/internal/service/chat"
)

// ChatHandler exposes the conversational logging assistant.
type ChatHandler struct {
	svc    *chat.Service
	logger *zap.Logger
}

// NewChatHandler constructs the HTTP handler adapter.
func NewChatHandler(svc *chat.Service, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{svc: svc, logger: logger}
}

type chatRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	ConversationID string `json:"conversation_id"`
	Prompt         string `json:"prompt" binding:"required"`
	IntentID       *int   `json:"intent_id"`
}

// Turn processes one user message through the slot-filling pipeline.
func (h *ChatHandler) Turn(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid chat payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.svc.HandleTurn(c.Request.Context(), chat.TurnRequest{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Prompt:         req.Prompt,
		IntentID:       req.IntentID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondSuccess(c, http.StatusOK, result)
}
