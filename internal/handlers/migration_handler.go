package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-migration-service/internal/services"
)

// MigrationHandler handles migration batch endpoints
type MigrationHandler struct {
	service  *services.MigrationService
	maxItems int
}

// NewMigrationHandler creates a new migration handler
func NewMigrationHandler(service *services.MigrationService, maxItems int) *MigrationHandler {
	return &MigrationHandler{service: service, maxItems: maxItems}
}

// RunBatch runs one synchronous migration batch
func (h *MigrationHandler) RunBatch(c *gin.Context) {
	var req services.RunBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.ProductIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_ids must not be empty"})
		return
	}
	if h.maxItems > 0 && len(req.ProductIDs) > h.maxItems {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("batch too large: %d items, limit is %d", len(req.ProductIDs), h.maxItems),
		})
		return
	}

	job, report, err := h.service.RunBatch(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		resp := gin.H{"error": err.Error()}
		if job != nil {
			resp["jobId"] = job.ID
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobId":  job.ID,
		"report": report,
	})
}

// GetJob returns a migration job with its progress
func (h *MigrationHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID"})
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetJobLogs returns the log lines of a migration job
func (h *MigrationHandler) GetJobLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, total, err := h.service.GetJobLogs(c.Request.Context(), id, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  logs,
		"total": total,
	})
}

// ListJobs returns past migration jobs, newest first
func (h *MigrationHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, total, err := h.service.ListJobs(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  jobs,
		"total": total,
	})
}
