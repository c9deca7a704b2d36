package handler

import (
	"net/http"
	"strings"

	"perfbot/internal/logger"
	"perfbot/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig wires handlers into a gin engine
type RouterConfig struct {
	AllowedOrigins string
	EnableDebug    bool

	Auth   *middleware.AuthMiddleware
	Chat   *ChatHandler
	Orders *OrderHandler
	System *SystemHandler
	Debug  *DebugHandler
}

// NewRouter builds the HTTP routes
func NewRouter(rc RouterConfig, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(rc.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", rc.System.Health)
	router.GET("/version", rc.System.Version)

	apiV1 := router.Group("/api/v1", rc.Auth.RequireAuth())
	{
		apiV1.POST("/chat", rc.Chat.Chat)
		apiV1.GET("/chat/sessions/:session_id/messages", rc.Chat.History)

		apiV1.POST("/orders", rc.Orders.Create)
		apiV1.GET("/orders", rc.Orders.List)
		apiV1.GET("/orders/lookup/:id", rc.Orders.Lookup)
		apiV1.GET("/orders/:id", rc.Orders.Get)
		apiV1.GET("/orders/:id/tracking", rc.Orders.Tracking)
		apiV1.POST("/orders/:id/issues", rc.Orders.ReportIssue)
	}

	if rc.EnableDebug && rc.Debug != nil {
		debug := router.Group("/debug", rc.Auth.RequireAuth())
		debug.GET("/llm-status", rc.Debug.LLMStatus)
		debug.GET("/orders/:id/audit", rc.Debug.OrderAudit)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
