package handlers

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"marketplace/internal/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Pinger is a dependency whose reachability is reported by the health endpoints.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	critical map[string]Pinger
	optional map[string]Pinger
	started  time.Time
	version  string
	timeout  time.Duration
}

// NewHealthHandlers creates a new health handlers instance. Critical
// dependencies gate readiness; optional ones only degrade the health report.
func NewHealthHandlers(version string, critical, optional map[string]Pinger) *HealthHandlers {
	return &HealthHandlers{
		critical: critical,
		optional: optional,
		started:  time.Now(),
		version:  version,
		timeout:  2 * time.Second,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Services   map[string]string `json:"services"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
	Goroutines int               `json:"goroutines"`
}

// HealthCheck reports every dependency.
// @Summary      Health
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthStatus
// @Router       /health [get]
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Services:   make(map[string]string),
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Version:    h.version,
		Goroutines: runtime.NumGoroutine(),
	}

	for name, err := range h.check(c.Request().Context(), h.critical, h.optional) {
		if err != nil {
			health.Services[name] = "unhealthy"
			health.Status = "degraded"
			continue
		}
		health.Services[name] = "healthy"
	}

	return c.JSON(http.StatusOK, health)
}

// ReadinessCheck determines if the application is ready to serve traffic
// @Summary      Readiness
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health/ready [get]
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	var failed []string
	for name, err := range h.check(c.Request().Context(), h.critical) {
		if err != nil {
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "not_ready",
			"message": "Critical services unavailable",
			"failed":  failed,
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

// LivenessCheck determines if the application is running (basic liveness probe)
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandlers) check(ctx context.Context, groups ...map[string]Pinger) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(map[string]error)
	for _, group := range groups {
		for name, p := range group {
			err := p.Ping(ctx)
			if err != nil {
				logger.FromContext(ctx).Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			}
			results[name] = err
		}
	}
	return results
}
