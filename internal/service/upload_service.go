package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/ingest"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/queue"
	"github.com/timmy/leaflet/internal/storage"
)

// ErrUnsupportedFileType is returned for uploads that are not .epub files.
var ErrUnsupportedFileType = errors.New("unsupported file type: only .epub is accepted")

// Enqueuer submits ingestion tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) (string, error)
}

// UploadConfig holds configuration for the upload service.
type UploadConfig struct {
	TransientPrefix string
}

// UploadService accepts EPUB uploads: it stores the file transiently,
// creates a pending job and enqueues the ingestion task.
type UploadService struct {
	storage         storage.ObjectStorage
	tracker         *JobTracker
	queue           Enqueuer
	transientPrefix string
	logger          *logger.Logger
}

// NewUploadService creates an upload service.
func NewUploadService(
	objectStorage storage.ObjectStorage,
	tracker *JobTracker,
	q Enqueuer,
	log *logger.Logger,
	cfg *UploadConfig,
) *UploadService {
	prefix := "transient"
	if cfg != nil && cfg.TransientPrefix != "" {
		prefix = strings.Trim(cfg.TransientPrefix, "/")
	}
	return &UploadService{
		storage:         objectStorage,
		tracker:         tracker,
		queue:           q,
		transientPrefix: prefix,
		logger:          log,
	}
}

func (s *UploadService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// IsEpub reports whether fileName has the .epub extension.
func IsEpub(fileName string) bool {
	return strings.EqualFold(filepath.Ext(fileName), ".epub")
}

// Submit stores an upload and schedules its ingestion.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - readerID: owning reader.
//   - fileName: client file name; must end in .epub.
//   - body: file content.
//   - size: content length in bytes.
// Returns:
//   - *domain.Job: the pending job to poll.
//   - error: ErrUnsupportedFileType before any side effect, or a storage/queue error.
func (s *UploadService) Submit(ctx context.Context, readerID, fileName string, body io.Reader, size int64) (*domain.Job, error) {
	if !IsEpub(fileName) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, fileName)
	}

	targetID := uuid.NewString()
	transient := path.Join(s.transientPrefix, uuid.NewString()+".epub")

	if err := s.storage.Upload(ctx, transient, body, size, "application/epub+zip"); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	job, err := s.tracker.Create(ctx, domain.JobTypeEpubImport, readerID, targetID)
	if err != nil {
		return nil, err
	}

	task := queue.Task{
		ReaderID:          readerID,
		JobID:             job.ID,
		TransientFileName: transient,
		TargetID:          targetID,
	}
	if _, err := s.queue.Enqueue(ctx, task); err != nil {
		// Do not leave a job pending that no worker will ever see.
		cerr := s.tracker.Complete(context.WithoutCancel(ctx), job.ID, Completion{
			Error:     err.Error(),
			ErrorKind: string(ingest.KindDependency),
		})
		if cerr != nil {
			s.log(ctx).WithError(cerr).WithField(logger.FieldJobID, job.ID).Error("Failed to fail unqueued job")
		}
		return nil, fmt.Errorf("failed to enqueue ingestion: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldJobID:         job.ID,
		logger.FieldReaderID:      readerID,
		logger.FieldPublicationID: targetID,
		logger.FieldSize:          size,
		"file":                    fileName,
	}).Info("Accepted EPUB upload")
	return job, nil
}
