package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"payfast-gateway/internal/logger"
)

// Pinger is anything the health check should reach.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps        map[string]Pinger
	environment string
	log         *logger.Logger
}

func NewHealthHandler(deps map[string]Pinger, environment string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{deps: deps, environment: environment, log: log}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.log.Warn("HEALTH", name+" check failed: "+err.Error())
			checks[name] = "down"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	c.JSON(code, gin.H{
		"status":      status,
		"checks":      checks,
		"environment": h.environment,
		"timestamp":   time.Now().UTC(),
		"service":     "payfast-gateway",
		"version":     "1.0.0",
	})
}
