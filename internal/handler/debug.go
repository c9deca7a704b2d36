package handler

import (
	"context"
	"net/http"
	"strconv"

	"perfbot/internal/middleware"
	"perfbot/internal/model"
	"perfbot/internal/service"

	"github.com/gin-gonic/gin"
)

// LLMStatusReporter describes the configured provider
type LLMStatusReporter interface {
	Status(ctx context.Context, live bool) service.ProviderStatus
}

// AuditHistory reads back the audit entries a user's actions produced for an entity
type AuditHistory interface {
	History(ctx context.Context, userID, entityID string, limit int64) ([]model.AuditEntry, error)
}

// DebugHandler serves diagnostics. Only mounted when debug routes are enabled.
type DebugHandler struct {
	llm   LLMStatusReporter
	audit AuditHistory
}

// NewDebugHandler creates a new debug handler. audit may be nil.
func NewDebugHandler(llm LLMStatusReporter, audit AuditHistory) *DebugHandler {
	return &DebugHandler{llm: llm, audit: audit}
}

// LLMStatus handles GET /debug/llm-status[?test=true]
func (h *DebugHandler) LLMStatus(c *gin.Context) {
	live, _ := strconv.ParseBool(c.Query("test"))
	c.JSON(http.StatusOK, h.llm.Status(c.Request.Context(), live))
}

// OrderAudit handles GET /debug/orders/:id/audit. Only the caller's own orders
// are visible; anything else is reported as not found.
func (h *DebugHandler) OrderAudit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Audit log is not configured"})
		return
	}

	limit := int64(50)
	if v, err := strconv.ParseInt(c.Query("limit"), 10, 64); err == nil && v > 0 && v <= 500 {
		limit = v
	}

	entries, err := h.audit.History(c.Request.Context(), middleware.UserID(c), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read audit log: " + err.Error()})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("id"), "entries": entries})
}
