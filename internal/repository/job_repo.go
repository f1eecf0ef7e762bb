package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/timmy/leaflet/internal/domain"
)

// JobRepository handles job data operations.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job. The ID and published time are assigned on insert
// when empty.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.Job: job record if found.
//   - error: wraps ErrNotFound when no job has the id.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, "job", id)
	}
	return &job, nil
}

// JobResult is the terminal state written by Finish.
type JobResult struct {
	Finished  time.Time
	Error     *string
	ErrorKind string
	TargetID  *string
}

// Finish records the terminal state of a pending job. The update only
// applies while finished is NULL, so a job is finished at most once.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - res: terminal fields to store.
// Returns:
//   - error: ErrNotFound for an unknown id, ErrAlreadyFinished when the job
//     was already finished, or the database error.
func (r *JobRepository) Finish(ctx context.Context, id string, res JobResult) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND finished IS NULL", id).
		Updates(map[string]interface{}{
			"finished":      res.Finished,
			"error_message": res.Error,
			"error_kind":    res.ErrorKind,
			"target_id":     res.TargetID,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finish job: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check job: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("job %s: %w", id, ErrAlreadyFinished)
}

// ListPending returns unfinished jobs published before the cutoff, oldest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - before: publication time cutoff.
//   - limit: maximum number of jobs to return.
// Returns:
//   - []domain.Job: pending jobs.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListPending(ctx context.Context, before time.Time, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	err := r.db.WithContext(ctx).
		Where("finished IS NULL AND published < ?", before).
		Order("published ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
