package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/leaflet/internal/api/middleware"
	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/service"
)

// PublicationHandler handles EPUB upload and publication endpoints.
type PublicationHandler struct {
	uploads      *service.UploadService
	publications *service.PublicationService
	maxUpload    int64
}

// NewPublicationHandler creates a new publication handler.
// Parameters:
//   - uploads: upload service.
//   - publications: publication service.
//   - maxUploadMB: upload size limit in MiB; 0 disables it.
// Returns:
//   - *PublicationHandler: initialized handler.
func NewPublicationHandler(uploads *service.UploadService, publications *service.PublicationService, maxUploadMB int64) *PublicationHandler {
	return &PublicationHandler{
		uploads:      uploads,
		publications: publications,
		maxUpload:    maxUploadMB << 20,
	}
}

// UploadEpub handles POST /api/v1/publications/epub.
// Expects a multipart form with a "file" field; responds 202 with the job.
func (h *PublicationHandler) UploadEpub(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	if !service.IsEpub(file.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only .epub files are accepted"})
		return
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds %d MiB limit", h.maxUpload>>20),
		})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	job, err := h.uploads.Submit(c.Request.Context(), middleware.ReaderID(c), file.Filename, f, file.Size)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFileType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to accept upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to accept upload"})
		return
	}

	c.Header("Location", "/api/v1/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, NewJobResponse(job))
}

// PublicationResponse is a publication with its stored documents.
type PublicationResponse struct {
	*domain.Publication
	Documents []domain.Document `json:"documents"`
}

// GetPublication handles GET /api/v1/publications/:id.
func (h *PublicationHandler) GetPublication(c *gin.Context) {
	pub, docs, err := h.publications.Get(c.Request.Context(), middleware.ReaderID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrPublicationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "publication not found"})
			return
		}
		middleware.GetLogger(c).WithError(err).Error("Failed to load publication")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load publication"})
		return
	}

	c.JSON(http.StatusOK, PublicationResponse{Publication: pub, Documents: docs})
}
