package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/backstage/services/ordermonitor/internal/metrics"
)

// HealthChecker probes the backing components
type HealthChecker interface {
	CheckHealth(ctx context.Context) map[string]bool
}

// MetricsHandler handles metrics-related HTTP requests
type MetricsHandler struct {
	metrics *metrics.Metrics
	health  HealthChecker
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metrics *metrics.Metrics, health HealthChecker) *MetricsHandler {
	return &MetricsHandler{
		metrics: metrics,
		health:  health,
	}
}

// HandleGetMetrics returns all metrics
func (h *MetricsHandler) HandleGetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetAllMetrics())
}

// HandleGetHealthCheck probes every component and answers 503 when one is
// down
func (h *MetricsHandler) HandleGetHealthCheck(c *gin.Context) {
	var checks map[string]bool
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		checks = h.health.CheckHealth(ctx)
		cancel()
	}

	status := "healthy"
	code := http.StatusOK
	for _, ok := range checks {
		if !ok {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, gin.H{
		"status":         status,
		"uptime_seconds": h.metrics.GetUptimeSeconds(),
		"components":     checks,
	})
}

// RegisterRoutes registers the metrics routes
func (h *MetricsHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/metrics", h.HandleGetMetrics)
	router.GET("/health", h.HandleGetHealthCheck)
}
