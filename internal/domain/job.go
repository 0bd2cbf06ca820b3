package domain

import (
	"time"
)

// JobID is a unique identifier for a job.
type JobID string

// String returns the string representation of the JobID.
func (id JobID) String() string {
	return string(id)
}

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job is an asynchronous acquisition waiting in the queue.
type Job struct {
	ID         JobID
	Request    MediaRequest
	Status     JobStatus
	Attempts   int
	MaxRetries int
	LastError  string
	Result     *DownloadResult
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewJob creates a new job for an acquisition request.
func NewJob(id JobID, req MediaRequest, maxRetries int) *Job {
	now := time.Now()
	return &Job{
		ID:         id,
		Request:    req,
		Status:     JobStatusQueued,
		Attempts:   0,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxRetries
}

// MarkProcessing updates the job status to processing.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now()
}

// MarkCompleted stores the result and updates the job status to completed.
func (j *Job) MarkCompleted(res DownloadResult) {
	j.Result = &res
	j.Status = JobStatusCompleted
	j.UpdatedAt = time.Now()
}

// MarkFailed records the failed result. The job goes back to retrying
// while attempts remain.
func (j *Job) MarkFailed(res DownloadResult) {
	j.Attempts++
	j.Result = &res
	j.LastError = ErrorKind(res.Err)
	j.UpdatedAt = time.Now()

	if j.CanRetry() {
		j.Status = JobStatusRetrying
	} else {
		j.Status = JobStatusFailed
	}
}

// IsFinished reports whether the job reached a terminal state.
func (j *Job) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
