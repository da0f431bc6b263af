package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/banton/medical-patients-sub001/internal/cache"
	"github.com/banton/medical-patients-sub001/internal/models"
	"github.com/banton/medical-patients-sub001/internal/repository"
)

const configListKey = "configurations:list"

// ConfigurationHandler handles stored configuration CRUD
type ConfigurationHandler struct {
	repo  *repository.ConfigRepository
	cache *cache.Cache
}

// NewConfigurationHandler creates a new configuration handler
func NewConfigurationHandler(repo *repository.ConfigRepository, c *cache.Cache) *ConfigurationHandler {
	return &ConfigurationHandler{repo: repo, cache: c}
}

// ConfigurationRequest is the create/update body
type ConfigurationRequest struct {
	Name          string                  `json:"name" binding:"required"`
	Description   string                  `json:"description,omitempty"`
	Configuration models.GenerationConfig `json:"configuration" binding:"required"`
}

// Create stores a new configuration
func (h *ConfigurationHandler) Create(c *gin.Context) {
	var req ConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Configuration.TotalPatients <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "total_patients must be positive"})
		return
	}

	rec := &models.ConfigurationRecord{
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Configuration,
	}
	if err := h.repo.Create(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create configuration"})
		return
	}
	h.cache.Invalidate(c.Request.Context(), configListKey)
	c.JSON(http.StatusCreated, rec)
}

// List returns all configurations
func (h *ConfigurationHandler) List(c *gin.Context) {
	var cached []models.ConfigurationRecord
	if h.cache.Get(c.Request.Context(), configListKey, &cached) {
		c.JSON(http.StatusOK, gin.H{"configurations": cached, "count": len(cached)})
		return
	}

	recs, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list configurations"})
		return
	}
	h.cache.Set(c.Request.Context(), configListKey, recs)
	c.JSON(http.StatusOK, gin.H{"configurations": recs, "count": len(recs)})
}

// Get returns one configuration
func (h *ConfigurationHandler) Get(c *gin.Context) {
	rec, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get configuration"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "configuration not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Update replaces a configuration
func (h *ConfigurationHandler) Update(c *gin.Context) {
	var req ConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec := &models.ConfigurationRecord{
		ID:          c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Configuration,
	}
	if err := h.repo.Update(c.Request.Context(), rec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "configuration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update configuration"})
		return
	}
	h.cache.Invalidate(c.Request.Context(), configListKey)
	c.JSON(http.StatusOK, rec)
}

// Delete removes a configuration
func (h *ConfigurationHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "configuration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete configuration"})
		return
	}
	h.cache.Invalidate(c.Request.Context(), configListKey)
	c.Status(http.StatusNoContent)
}
