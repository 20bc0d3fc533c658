package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/phambaophuc/smartmine-client/internal/models"
)

// HealthCheckFunc reports "healthy", "not configured" or a failure text.
type HealthCheckFunc func(ctx context.Context) string

// QueueStatsFunc snapshots the job queue for the health report.
type QueueStatsFunc func() (models.QueueStats, error)

type HealthHandler struct {
	checks     map[string]HealthCheckFunc
	queueStats QueueStatsFunc
}

func NewHealthHandler(checks map[string]HealthCheckFunc) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// WithQueueStats adds the queue backlog to the report.
func (h *HealthHandler) WithQueueStats(fn QueueStatsFunc) *HealthHandler {
	h.queueStats = fn
	return h
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	statuses := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		statuses[name] = check(c.Request.Context())
	}
	overall := calculateOverallHealth(statuses)

	statusCode := http.StatusOK
	if overall == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	report := models.HealthCheck{
		Status:    overall,
		Timestamp: time.Now(),
		Services:  statuses,
	}
	if h.queueStats != nil {
		if stats, err := h.queueStats(); err == nil {
			report.Queue = &stats
		}
	}

	c.JSON(statusCode, models.APIResponse{
		Success: overall == "healthy",
		Data:    report,
	})
}

func calculateOverallHealth(services map[string]string) string {
	for _, status := range services {
		if status != "healthy" && status != "not configured" {
			return "unhealthy"
		}
	}
	return "healthy"
}
