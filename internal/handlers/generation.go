package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/banton/medical-patients-sub001/internal/jobs"
	"github.com/banton/medical-patients-sub001/internal/models"
	"github.com/banton/medical-patients-sub001/internal/repository"
)

// GenerationHandler handles generation requests
type GenerationHandler struct {
	manager *jobs.Manager
	configs *repository.ConfigRepository
}

// NewGenerationHandler creates a new generation handler
func NewGenerationHandler(manager *jobs.Manager, configs *repository.ConfigRepository) *GenerationHandler {
	return &GenerationHandler{manager: manager, configs: configs}
}

// GenerationRequest is the POST /generation/ body. Exactly one of
// ConfigurationID and Configuration must be set.
type GenerationRequest struct {
	ConfigurationID    string                   `json:"configuration_id,omitempty"`
	Configuration      *models.GenerationConfig `json:"configuration,omitempty"`
	OutputFormats      []string                 `json:"output_formats,omitempty"`
	UseCompression     bool                     `json:"use_compression"`
	UseEncryption      bool                     `json:"use_encryption"`
	EncryptionPassword string                   `json:"encryption_password,omitempty"`
}

// Generate starts a new generation job
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if (req.ConfigurationID == "") == (req.Configuration == nil) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "exactly one of configuration_id and configuration must be provided",
		})
		return
	}
	if req.UseEncryption && req.EncryptionPassword == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "encryption_password is required when use_encryption is set",
		})
		return
	}
	if !req.UseEncryption && req.EncryptionPassword != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "encryption_password provided without use_encryption",
		})
		return
	}

	cfg := req.Configuration
	if req.ConfigurationID != "" {
		if h.configs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stored configurations are not available"})
			return
		}
		rec, err := h.configs.GetByID(c.Request.Context(), req.ConfigurationID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load configuration"})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "configuration not found"})
			return
		}
		cfg = &rec.Config
	}

	password := ""
	if req.UseEncryption {
		password = req.EncryptionPassword
	}
	job, err := h.manager.Submit(c.Request.Context(), jobs.SubmitRequest{
		Config:          *cfg,
		OutputFormats:   req.OutputFormats,
		Compress:        req.UseCompression,
		EncryptPassword: password,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"job_id":                     job.ID,
		"status":                     job.Status,
		"message":                    "generation started",
		"estimated_duration_seconds": jobs.EstimateDuration(cfg.TotalPatients),
	})
}
