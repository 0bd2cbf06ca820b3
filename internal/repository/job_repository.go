package repository

import (
	"context"
	"sync"

	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/resolver"
)

// InMemoryJobRepository implements JobRepository using in-memory storage.
type InMemoryJobRepository struct {
	mu        sync.RWMutex
	jobs      map[domain.JobID]*domain.Job
	byRequest map[string]domain.JobID
	queue     []domain.JobID // FIFO queue of pending job IDs
}

// NewInMemoryJobRepository creates a new in-memory job repository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobs:      make(map[domain.JobID]*domain.Job),
		byRequest: make(map[string]domain.JobID),
		queue:     make([]domain.JobID, 0),
	}
}

// requestKey identifies a request by kind and resolved id so that different
// links to the same item share a job. Unresolvable links key on the raw text.
func requestKey(req domain.MediaRequest) string {
	if id, err := resolver.Resolve(req.RawLink(), req.IsBareID()); err == nil {
		return string(req.Kind()) + ":" + id.String()
	}
	return string(req.Kind()) + ":" + req.RawLink()
}

// Enqueue adds a job to the queue.
func (r *InMemoryJobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job
	r.byRequest[requestKey(job.Request)] = job.ID
	r.queue = append(r.queue, job.ID)

	return nil
}

// Dequeue retrieves the next pending job (FIFO).
func (r *InMemoryJobRepository) Dequeue(ctx context.Context) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, jobID := range r.queue {
		job, ok := r.jobs[jobID]
		if !ok {
			continue
		}

		if job.Status == domain.JobStatusQueued || job.Status == domain.JobStatusRetrying {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return job, nil
		}
	}

	return nil, domain.ErrNoJobs
}

// Update modifies job state.
func (r *InMemoryJobRepository) Update(ctx context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}

	r.jobs[job.ID] = job

	// If job is retrying, add back to queue
	if job.Status == domain.JobStatusRetrying {
		r.queue = append(r.queue, job.ID)
	}

	return nil
}

// Get retrieves a job by ID.
func (r *InMemoryJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}

	return job, nil
}

// GetByRequest finds the most recent job for the same link and kind.
func (r *InMemoryJobRepository) GetByRequest(ctx context.Context, req domain.MediaRequest) (*domain.Job, error) {
	r.mu.RLock()
	jobID, ok := r.byRequest[requestKey(req)]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.ErrJobNotFound
	}

	return r.Get(ctx, jobID)
}

// ListPending returns all pending/retrying jobs.
func (r *InMemoryJobRepository) ListPending(ctx context.Context) ([]*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Job
	for _, job := range r.jobs {
		if job.Status == domain.JobStatusQueued || job.Status == domain.JobStatusRetrying {
			result = append(result, job)
		}
	}

	return result, nil
}

// Stats returns queue statistics.
func (r *InMemoryJobRepository) Stats(ctx context.Context) (*QueueStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &QueueStats{}
	for _, job := range r.jobs {
		switch job.Status {
		case domain.JobStatusQueued:
			stats.Queued++
		case domain.JobStatusProcessing:
			stats.Processing++
		case domain.JobStatusCompleted:
			stats.Completed++
		case domain.JobStatusFailed:
			stats.Failed++
		case domain.JobStatusRetrying:
			stats.Retrying++
		}
	}

	return stats, nil
}

// Clear removes all jobs (useful for testing).
func (r *InMemoryJobRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = make(map[domain.JobID]*domain.Job)
	r.byRequest = make(map[string]domain.JobID)
	r.queue = make([]domain.JobID, 0)
}
