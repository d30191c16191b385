package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mverbeek/buurtlens/internal/domain"
	"github.com/mverbeek/buurtlens/internal/repository"
	"github.com/mverbeek/buurtlens/internal/service"
)

// JobHandler handles batch job endpoints.
type JobHandler struct {
	jobService *service.BatchJobService
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobService: batch job service instance.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobService *service.BatchJobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
	}
}

// enqueueRequest is the request body for POST /api/v1/jobs.
type enqueueRequest struct {
	Type   string `json:"type" binding:"required"`
	Target string `json:"target"`
}

// Enqueue handles POST /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	jobType := domain.BatchJobType(req.Type)
	if !jobType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown job type: " + req.Type,
		})
		return
	}
	if jobType == domain.JobTypeCityIngestion && req.Target == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Job type city_ingestion requires a target municipality",
		})
		return
	}

	job, err := h.jobService.Enqueue(c.Request.Context(), jobType, req.Target)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue job: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, job)
}

// List handles GET /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	var filter repository.ListFilter
	if status := c.Query("status"); status != "" {
		s := domain.BatchJobStatus(status)
		filter.Status = &s
	}
	if jobType := c.Query("type"); jobType != "" {
		t := domain.BatchJobType(jobType)
		filter.Type = &t
	}
	filter.Search = c.Query("search")
	filter.Sort = c.Query("sort")

	jobs, total, err := h.jobService.List(c.Request.Context(), page, pageSize, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":      jobs,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Recent handles GET /api/v1/jobs/recent.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Recent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	jobs, err := h.jobService.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list recent jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// Details handles GET /api/v1/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Details(c *gin.Context) {
	job, err := h.jobService.Details(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job":           job,
		"execution_log": job.ExecutionLog(),
	})
}

// Retry handles POST /api/v1/jobs/:id/retry.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Retry(c *gin.Context) {
	job, err := h.jobService.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
		case errors.Is(err, service.ErrNotRetryable):
			c.JSON(http.StatusConflict, gin.H{
				"error": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to retry job: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, job)
}

// Cancel handles POST /api/v1/jobs/:id/cancel.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *JobHandler) Cancel(c *gin.Context) {
	job, err := h.jobService.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
		case errors.Is(err, service.ErrNotCancellable):
			c.JSON(http.StatusConflict, gin.H{
				"error": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to cancel job: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, job)
}
