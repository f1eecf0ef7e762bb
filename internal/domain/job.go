package domain

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobTypeEpubImport identifies EPUB ingestion jobs.
const JobTypeEpubImport = "epub-import"

// Job records one asynchronous ingestion attempt. It is created pending,
// finished exactly once, and never deleted.
type Job struct {
	ID              string     `gorm:"type:text;primaryKey" json:"id"`
	Type            string     `gorm:"type:text;not null;index" json:"type"`
	ReaderID        string     `gorm:"type:text;not null;index" json:"reader_id"`
	PlannedTargetID string     `gorm:"type:text" json:"planned_target_id,omitempty"`
	TargetID        *string    `gorm:"type:text" json:"target_id,omitempty"`
	Error           *string    `gorm:"column:error_message;type:text" json:"error,omitempty"`
	ErrorKind       string     `gorm:"type:text" json:"error_kind,omitempty"`
	Published       time.Time  `gorm:"not null" json:"published"`
	Finished        *time.Time `gorm:"index" json:"finished,omitempty"`
}

// TableName returns the database table name for Job.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Job) TableName() string {
	return "jobs"
}

// BeforeCreate assigns the identifier and publication time.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Published.IsZero() {
		j.Published = time.Now().UTC()
	}
	return nil
}

// JobStatus is the status code derived from a job's terminal fields.
type JobStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// Status derives the job status: 304 while pending, 201 on success, 500 with
// the error message on failure.
func (j *Job) Status() JobStatus {
	switch {
	case j.Error != nil:
		return JobStatus{Code: http.StatusInternalServerError, Message: *j.Error}
	case j.Finished != nil:
		return JobStatus{Code: http.StatusCreated}
	default:
		return JobStatus{Code: http.StatusNotModified}
	}
}

// IsFinished reports whether the job reached a terminal state.
func (j *Job) IsFinished() bool {
	return j.Finished != nil
}
