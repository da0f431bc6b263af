package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/banton/medical-patients-sub001/internal/cache"
	"github.com/banton/medical-patients-sub001/internal/repository"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	repo    *repository.JobRepository
	cache   *cache.Cache
	started time.Time
}

// NewHealthHandler creates a new health handler. repo may be nil when the
// service runs with the in-memory store.
func NewHealthHandler(repo *repository.JobRepository, c *cache.Cache) *HealthHandler {
	return &HealthHandler{repo: repo, cache: c, started: time.Now()}
}

// Health is the liveness probe
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// Ready is the readiness probe: checks backing services
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if h.repo != nil {
		if err := h.repo.Ready(c.Request.Context()); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "in-memory"
	}

	if err := h.cache.Ready(c.Request.Context()); err != nil {
		checks["cache"] = err.Error()
	} else {
		checks["cache"] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}
