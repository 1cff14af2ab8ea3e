package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe reports whether one backing dependency is reachable.
type Probe func(ctx context.Context) bool

type HealthProbes struct {
	Database Probe
	Email    Probe
	Kafka    Probe
	Redis    Probe
}

type HealthHandler struct {
	probes  HealthProbes
	timeout time.Duration
}

func NewHealthHandler(probes HealthProbes) *HealthHandler {
	return &HealthHandler{probes: probes, timeout: 2 * time.Second}
}

// Health always answers 200; the flags describe the degraded parts.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"databaseConnected": run(ctx, h.probes.Database),
		"emailConfigured":   run(ctx, h.probes.Email),
		"kafkaConnected":    run(ctx, h.probes.Kafka),
		"redisConnected":    run(ctx, h.probes.Redis),
	})
}

func run(ctx context.Context, p Probe) bool {
	if p == nil {
		return false
	}
	return p(ctx)
}
