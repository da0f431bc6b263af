package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/banton/medical-patients-sub001/internal/jobs"
)

// JobHandler handles job lifecycle requests
type JobHandler struct {
	manager *jobs.Manager
}

// NewJobHandler creates a new job handler
func NewJobHandler(manager *jobs.Manager) *JobHandler {
	return &JobHandler{manager: manager}
}

// List returns recent jobs
func (h *JobHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.manager.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list, "count": len(list)})
}

// Get returns one job with progress details
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.manager.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Results lists the output files of a completed job
func (h *JobHandler) Results(c *gin.Context) {
	job, err := h.manager.Get(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}
	if job.Status != "completed" {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "results not available",
			"status": job.Status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "result_files": job.ResultFiles})
}

// Download streams a ZIP bundle of the job's result files
func (h *JobHandler) Download(c *gin.Context) {
	jobID := c.Param("job_id")
	archive, err := h.manager.ArchivePath(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+jobID+`.zip"`)
	c.Header("Content-Type", "application/zip")
	c.File(archive)
}

// Cancel requests cancellation of a running job
func (h *JobHandler) Cancel(c *gin.Context) {
	err := h.manager.Cancel(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "cancellation requested"})
}

// Delete cancels and removes a job
func (h *JobHandler) Delete(c *gin.Context) {
	err := h.manager.Delete(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job"})
		return
	}
	c.Status(http.StatusNoContent)
}
