package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/repository"
)

// ErrShutdownTimeout is returned when workers don't stop within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// Acquirer runs one acquisition to completion.
type Acquirer interface {
	Acquire(ctx context.Context, req domain.MediaRequest) domain.DownloadResult
}

// Pool manages a pool of workers for processing acquisition jobs.
type Pool struct {
	workers      int
	pollInterval time.Duration
	jobRepo      repository.JobRepository
	acquirer     Acquirer
	logger       *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker pool configuration.
type Config struct {
	Workers      int
	PollInterval time.Duration
}

// NewPool creates a new worker pool.
func NewPool(
	cfg Config,
	jobRepo repository.JobRepository,
	acquirer Acquirer,
	logger *slog.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval,
		jobRepo:      jobRepo,
		acquirer:     acquirer,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Info("worker started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			logger.Info("worker stopping")
			return
		case <-ticker.C:
			p.processNextJob(logger)
		}
	}
}

func (p *Pool) processNextJob(logger *slog.Logger) {
	job, err := p.jobRepo.Dequeue(p.ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoJobs) {
			logger.Error("failed to dequeue job", "error", err)
		}
		return
	}

	logger = logger.With(
		"job_id", job.ID,
		"link", job.Request.RawLink(),
		"kind", string(job.Request.Kind()),
	)
	logger.Info("processing job")

	// Update job status to processing
	job.MarkProcessing()
	if err := p.jobRepo.Update(p.ctx, job); err != nil {
		logger.Error("failed to update job status", "error", err)
		return
	}

	res := p.acquirer.Acquire(p.ctx, job.Request)
	if !res.OK {
		p.handleJobFailure(logger, job, res)
		return
	}

	job.MarkCompleted(res)
	if err := p.jobRepo.Update(p.ctx, job); err != nil {
		logger.Error("failed to mark job completed", "error", err)
	}

	logger.Info("job completed successfully", "path", res.Path, "strategy", string(res.Strategy))
}

func (p *Pool) handleJobFailure(logger *slog.Logger, job *domain.Job, res domain.DownloadResult) {
	job.MarkFailed(res)

	if job.CanRetry() {
		logger.Warn("job failed, will retry",
			"error_kind", job.LastError,
			"attempt", job.Attempts,
			"max_retries", job.MaxRetries,
		)
	} else {
		logger.Error("job failed permanently",
			"error_kind", job.LastError,
			"attempts", job.Attempts,
		)
	}

	if updateErr := p.jobRepo.Update(p.ctx, job); updateErr != nil {
		logger.Error("failed to update job after failure", "error", updateErr)
	}
}
