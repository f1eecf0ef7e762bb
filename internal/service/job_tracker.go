package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/repository"
)

var (
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyFinished is returned when completing a finished job.
	ErrJobAlreadyFinished = errors.New("job already finished")
)

// JobStore is the persistence the tracker needs.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	Finish(ctx context.Context, id string, res repository.JobResult) error
	ListPending(ctx context.Context, before time.Time, limit int) ([]domain.Job, error)
}

// Completion is the terminal outcome reported for a job. A non-empty Error
// marks failure; otherwise TargetID is stored as the result.
type Completion struct {
	Error     string
	ErrorKind string
	TargetID  string
}

// JobTracker records ingestion attempts and their outcome.
type JobTracker struct {
	jobs   JobStore
	logger *logger.Logger
	now    func() time.Time
}

// NewJobTracker creates a tracker.
func NewJobTracker(jobs JobStore, log *logger.Logger) *JobTracker {
	return &JobTracker{
		jobs:   jobs,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (t *JobTracker) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, t.logger)
}

// Create inserts a pending job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobType: kind of ingestion, e.g. domain.JobTypeEpubImport.
//   - readerID: owning reader.
//   - targetID: planned id of the publication the job will produce.
// Returns:
//   - *domain.Job: the stored job with its generated id.
//   - error: non-nil if the insert fails.
func (t *JobTracker) Create(ctx context.Context, jobType, readerID, targetID string) (*domain.Job, error) {
	job := &domain.Job{
		Type:            jobType,
		ReaderID:        readerID,
		PlannedTargetID: targetID,
		Published:       t.now(),
	}
	if err := t.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	t.log(ctx).WithFields(logger.Fields{
		logger.FieldJobID:    job.ID,
		logger.FieldReaderID: readerID,
		"type":               jobType,
	}).Info("Created job")
	return job, nil
}

// Get returns a job by id.
func (t *JobTracker) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := t.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// StatusOf derives the job status: 304 pending, 201 succeeded, 500 failed
// with the recorded message.
func (t *JobTracker) StatusOf(ctx context.Context, jobID string) (domain.JobStatus, error) {
	job, err := t.Get(ctx, jobID)
	if err != nil {
		return domain.JobStatus{}, err
	}
	return job.Status(), nil
}

// Complete finishes a job exactly once. A second call fails with
// ErrJobAlreadyFinished and leaves the first outcome in place.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job to finish.
//   - c: outcome; Error set means failure.
// Returns:
//   - error: ErrJobNotFound, ErrJobAlreadyFinished, or a storage error.
func (t *JobTracker) Complete(ctx context.Context, jobID string, c Completion) error {
	res := repository.JobResult{Finished: t.now()}
	if c.Error != "" {
		msg := c.Error
		res.Error = &msg
		res.ErrorKind = c.ErrorKind
	} else {
		target := c.TargetID
		res.TargetID = &target
	}

	if err := t.jobs.Finish(ctx, jobID, res); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		case errors.Is(err, repository.ErrAlreadyFinished):
			return fmt.Errorf("%w: %s", ErrJobAlreadyFinished, jobID)
		default:
			return fmt.Errorf("failed to complete job: %w", err)
		}
	}

	log := t.log(ctx).WithField(logger.FieldJobID, jobID)
	if c.Error != "" {
		log.WithFields(logger.Fields{"error": c.Error, "error_kind": c.ErrorKind}).Warn("Job failed")
	} else {
		log.WithField(logger.FieldPublicationID, c.TargetID).Info("Job succeeded")
	}
	return nil
}

// Stale returns jobs still pending after age, oldest first. Tasks are
// delivered at most once, so these will not finish on their own.
func (t *JobTracker) Stale(ctx context.Context, age time.Duration, limit int) ([]domain.Job, error) {
	jobs, err := t.jobs.ListPending(ctx, t.now().Add(-age), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	return jobs, nil
}
