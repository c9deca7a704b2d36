package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// BuildInfo is stamped at link time
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// Pinger is implemented by connected backends
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves /health and /version
type SystemHandler struct {
	build    BuildInfo
	backends map[string]Pinger
}

// NewSystemHandler creates a new system handler. Nil backends are skipped.
func NewSystemHandler(build BuildInfo, backends map[string]Pinger) *SystemHandler {
	live := make(map[string]Pinger, len(backends))
	for name, p := range backends {
		if p != nil {
			live[name] = p
		}
	}
	return &SystemHandler{build: build, backends: live}
}

// Health handles GET /health. Any failing backend marks the service degraded.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(h.backends))
	for name, p := range h.backends {
		if err := p.Ping(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":     status,
		"service":    "perfbot",
		"version":    h.build.Version,
		"build_time": h.build.BuildTime,
		"git_commit": h.build.GitCommit,
		"checks":     checks,
	})
}

// Version handles GET /version
func (h *SystemHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, h.build)
}
