package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmy/leaflet/internal/api/middleware"
	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/service"
)

// JobResponse is the job status surface.
type JobResponse struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	ReaderID         string     `json:"readerId"`
	TargetDocumentID *string    `json:"targetDocumentId,omitempty"`
	Error            *string    `json:"error,omitempty"`
	ErrorKind        string     `json:"errorKind,omitempty"`
	Published        time.Time  `json:"published"`
	Finished         *time.Time `json:"finished,omitempty"`
	Status           int        `json:"status"`
}

// NewJobResponse builds the status surface of a job.
func NewJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:               job.ID,
		Type:             job.Type,
		ReaderID:         job.ReaderID,
		TargetDocumentID: job.TargetID,
		Error:            job.Error,
		ErrorKind:        job.ErrorKind,
		Published:        job.Published,
		Finished:         job.Finished,
		Status:           job.Status().Code,
	}
}

// JobHandler handles job status endpoints.
type JobHandler struct {
	tracker *service.JobTracker
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - tracker: job tracker.
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(tracker *service.JobTracker) *JobHandler {
	return &JobHandler{tracker: tracker}
}

// GetJob handles GET /api/v1/jobs/:id.
// Jobs of other readers are reported as not found.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.tracker.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to load job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	if job.ReaderID != middleware.ReaderID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, NewJobResponse(job))
}
