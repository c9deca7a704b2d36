package handler

import (
	"errors"
	"net/http"

	"perfbot/internal/logger"
	"perfbot/internal/middleware"
	"perfbot/internal/model"
	"perfbot/internal/service"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	chatService *service.ChatService
	log         *logger.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log.With("handler", "ChatHandler"),
	}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
			return
		}
		h.log.Error("Chat failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// History handles GET /api/v1/chat/sessions/:session_id/messages
func (h *ChatHandler) History(c *gin.Context) {
	resp, err := h.chatService.History(c.Request.Context(), middleware.UserID(c), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
			return
		}
		h.log.Error("Loading history failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
