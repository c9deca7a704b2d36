package handler

import (
	"errors"
	"net/http"
	"strings"

	"perfbot/internal/logger"
	"perfbot/internal/middleware"
	"perfbot/internal/model"
	"perfbot/internal/service"

	"github.com/gin-gonic/gin"
)

const noItemsMessage = "No menu items detected in conversation. Please mention specific items from our menu."

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService *service.OrderService
	log          *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		log:          log.With("handler", "OrderHandler"),
	}
}

// Create handles POST /api/v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req model.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	resp, err := h.orderService.CreateFromSession(c.Request.Context(), middleware.UserID(c), req.SessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// List handles GET /api/v1/orders
func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Get handles GET /api/v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	h.view(c, false)
}

// Lookup handles GET /api/v1/orders/lookup/:id, adding a one-line summary for chat
func (h *OrderHandler) Lookup(c *gin.Context) {
	h.view(c, true)
}

func (h *OrderHandler) view(c *gin.Context, withSummary bool) {
	view, err := h.orderService.View(c.Request.Context(), middleware.UserID(c), c.Param("id"), withSummary)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Tracking handles GET /api/v1/orders/:id/tracking
func (h *OrderHandler) Tracking(c *gin.Context) {
	tracking, err := h.orderService.Tracking(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tracking)
}

// ReportIssue handles POST /api/v1/orders/:id/issues
func (h *OrderHandler) ReportIssue(c *gin.Context) {
	var req model.ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	issue, err := h.orderService.ReportIssue(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Issue reported successfully", "issue": issue})
}

// writeError maps service errors to responses. Missing and foreign rows get
// the same message.
func (h *OrderHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat session not found"})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, service.ErrNoUserMessages):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No user messages found in conversation"})
	case errors.Is(err, service.ErrNoItemsDetected):
		c.JSON(http.StatusBadRequest, gin.H{"error": noItemsMessage})
	case errors.Is(err, service.ErrInvalidIssue):
		c.JSON(http.StatusBadRequest, gin.H{"error": "issue_type and description are required"})
	case errors.Is(err, service.ErrMenuUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Menu data not available"})
	default:
		h.log.Error("Order request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
