package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/downloader"
	"github.com/iconidentify/ytgrabba/internal/repository"
	"github.com/iconidentify/ytgrabba/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockJobRepository is a test implementation of repository.JobRepository.
type mockJobRepository struct {
	stats      *repository.QueueStats
	statsErr   error
	jobs       map[domain.JobID]*domain.Job
	enqueueErr error
	dequeueErr error
}

func newMockJobRepository() *mockJobRepository {
	return &mockJobRepository{
		stats: &repository.QueueStats{},
		jobs:  make(map[domain.JobID]*domain.Job),
	}
}

func (m *mockJobRepository) Enqueue(ctx context.Context, job *domain.Job) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepository) Dequeue(ctx context.Context) (*domain.Job, error) {
	if m.dequeueErr != nil {
		return nil, m.dequeueErr
	}
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusQueued {
			return job, nil
		}
	}
	return nil, domain.ErrNoJobs
}

func (m *mockJobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepository) Update(ctx context.Context, job *domain.Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *mockJobRepository) Stats(ctx context.Context) (*repository.QueueStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

func (m *mockJobRepository) GetByRequest(ctx context.Context, req domain.MediaRequest) (*domain.Job, error) {
	for _, job := range m.jobs {
		if job.Request == req {
			return job, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepository) ListPending(ctx context.Context) ([]*domain.Job, error) {
	var pending []*domain.Job
	for _, job := range m.jobs {
		if job.Status == domain.JobStatusQueued || job.Status == domain.JobStatusRetrying {
			pending = append(pending, job)
		}
	}
	return pending, nil
}

// mockRemoteChecker is a test implementation of RemoteChecker.
type mockRemoteChecker struct {
	err          error
	inaccessible bool
}

func (m *mockRemoteChecker) CheckRemote(ctx context.Context) (*downloader.ProbeResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.inaccessible {
		return &downloader.ProbeResult{Error: "status code 503"}, nil
	}
	return &downloader.ProbeResult{Accessible: true}, nil
}

// mockMediaService is a test implementation of MediaService.
type mockMediaService struct {
	mu sync.Mutex

	result   domain.DownloadResult
	requests []domain.MediaRequest

	jobs      map[domain.JobID]*domain.Job
	submitErr error
	jobsErr   error

	history    []repository.HistoryEntry
	historyErr error
	lastLimit  int

	playlist    []domain.MediaID
	playlistErr error

	stats    *service.Stats
	statsErr error
}

func newMockMediaService() *mockMediaService {
	return &mockMediaService{
		jobs: make(map[domain.JobID]*domain.Job),
	}
}

func (m *mockMediaService) Acquire(ctx context.Context, req domain.MediaRequest) domain.DownloadResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.result
}

func (m *mockMediaService) Submit(ctx context.Context, req domain.MediaRequest) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	job := domain.NewJob("job_test", req, 1)
	m.jobs[job.ID] = job
	return job, nil
}

func (m *mockMediaService) GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockMediaService) PendingJobs(ctx context.Context) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobsErr != nil {
		return nil, m.jobsErr
	}
	var pending []*domain.Job
	for _, job := range m.jobs {
		if !job.IsFinished() {
			pending = append(pending, job)
		}
	}
	return pending, nil
}

func (m *mockMediaService) History(ctx context.Context, limit int) ([]repository.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	return m.history, m.historyErr
}

func (m *mockMediaService) Playlist(ctx context.Context, link string, limit int, isBareID bool) ([]domain.MediaID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	return m.playlist, m.playlistErr
}

func (m *mockMediaService) Stats(ctx context.Context) (*service.Stats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	if m.stats == nil {
		return nil, errors.New("no stats")
	}
	return m.stats, nil
}
