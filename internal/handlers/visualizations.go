package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/banton/medical-patients-sub001/internal/jobs"
	"github.com/banton/medical-patients-sub001/internal/models"
)

// VisualizationHandler serves aggregated dashboard data
type VisualizationHandler struct {
	manager *jobs.Manager
}

// NewVisualizationHandler creates a new visualization handler
func NewVisualizationHandler(manager *jobs.Manager) *VisualizationHandler {
	return &VisualizationHandler{manager: manager}
}

// DashboardData aggregates recent job activity for the front end
func (h *VisualizationHandler) DashboardData(c *gin.Context) {
	list, err := h.manager.List(c.Request.Context(), 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load jobs"})
		return
	}

	byStatus := make(map[models.JobStatus]int)
	totalPatients := 0
	var recent []gin.H
	for _, job := range list {
		byStatus[job.Status]++
		if job.Status == models.JobCompleted {
			totalPatients += job.Config.TotalPatients
		}
		if len(recent) < 10 {
			recent = append(recent, gin.H{
				"job_id":     job.ID,
				"status":     job.Status,
				"progress":   job.Progress,
				"created_at": job.CreatedAt,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_jobs":               len(list),
		"jobs_by_status":           byStatus,
		"total_patients_generated": totalPatients,
		"recent_jobs":              recent,
	})
}

// JobTimeline returns the per-phase progress history of one job
func (h *VisualizationHandler) JobTimeline(c *gin.Context) {
	job, err := h.manager.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	out := gin.H{
		"job_id":   job.ID,
		"status":   job.Status,
		"progress": job.Progress,
	}
	if job.Details != nil {
		out["phase"] = job.Details.Phase
		out["phase_progress"] = job.Details.PhaseProgress
		out["processed_patients"] = job.Details.ProcessedCount
	}
	c.JSON(http.StatusOK, out)
}
