package repository

import (
	"context"
	"time"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// JobRepository manages the job queue.
type JobRepository interface {
	// Enqueue adds a job to the queue.
	Enqueue(ctx context.Context, job *domain.Job) error

	// Dequeue retrieves the next pending job (FIFO).
	Dequeue(ctx context.Context) (*domain.Job, error)

	// Update modifies job state.
	Update(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, id domain.JobID) (*domain.Job, error)

	// GetByRequest finds the most recent job for the same link and kind.
	GetByRequest(ctx context.Context, req domain.MediaRequest) (*domain.Job, error)

	// ListPending returns all pending/retrying jobs.
	ListPending(ctx context.Context) ([]*domain.Job, error)

	// Stats returns queue statistics.
	Stats(ctx context.Context) (*QueueStats, error)
}

// QueueStats contains job queue statistics.
type QueueStats struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Retrying   int `json:"retrying"`
}

// HistoryEntry is one finished acquisition.
type HistoryEntry struct {
	ID        int64            `json:"id"`
	MediaID   domain.MediaID   `json:"media_id"`
	Kind      domain.MediaKind `json:"kind"`
	Strategy  domain.Strategy  `json:"strategy"`
	OK        bool             `json:"ok"`
	Path      string           `json:"path,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Duration  time.Duration    `json:"duration_ns"`
	CreatedAt time.Time        `json:"created_at"`
}

// HistoryRepository persists acquisition outcomes.
type HistoryRepository interface {
	// Record stores one finished acquisition.
	Record(ctx context.Context, entry HistoryEntry) error

	// Recent returns the newest entries first.
	Recent(ctx context.Context, limit int) ([]HistoryEntry, error)

	// Close releases the underlying store.
	Close() error
}
