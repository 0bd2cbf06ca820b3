package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/iconidentify/ytgrabba/internal/cache"
	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/downloader"
	"github.com/iconidentify/ytgrabba/internal/repository"
	"github.com/iconidentify/ytgrabba/internal/resolver"
)

// ErrFallbackDisabled is returned by operations that need the extraction tool
// when it is not configured.
var ErrFallbackDisabled = errors.New("local extraction is disabled")

// RemoteClient submits a conversion job and waits for its download location.
type RemoteClient interface {
	SubmitAndPoll(ctx context.Context, id domain.MediaID, kind domain.MediaKind) (domain.RemoteLocation, error)
}

// Extractor resolves playable URLs and playlist entries with a local tool.
type Extractor interface {
	Extract(ctx context.Context, link string, kind domain.MediaKind) (string, error)
	ListPlaylist(ctx context.Context, link string, limit int) ([]domain.MediaID, error)
}

// AcquireService turns media requests into local files, trying the cache,
// the conversion API and the local extraction tool in that order.
type AcquireService struct {
	store          *cache.Store
	remote         RemoteClient
	fallbackRemote RemoteClient
	fetcher        downloader.Fetcher
	extractor      Extractor
	jobRepo        repository.JobRepository
	history        repository.HistoryRepository
	remoteCfg      config.RemoteConfig
	storageCfg     config.StorageConfig
	workerCfg      config.WorkerConfig
	logger         *slog.Logger

	group singleflight.Group
}

// NewAcquireService creates a new acquisition service. fallbackRemote,
// extractor and history may be nil.
func NewAcquireService(
	store *cache.Store,
	remote RemoteClient,
	fallbackRemote RemoteClient,
	fetcher downloader.Fetcher,
	extractor Extractor,
	jobRepo repository.JobRepository,
	history repository.HistoryRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *AcquireService {
	return &AcquireService{
		store:          store,
		remote:         remote,
		fallbackRemote: fallbackRemote,
		fetcher:        fetcher,
		extractor:      extractor,
		jobRepo:        jobRepo,
		history:        history,
		remoteCfg:      cfg.Remote,
		storageCfg:     cfg.Storage,
		workerCfg:      cfg.Worker,
		logger:         logger,
	}
}

// Acquire obtains a playable file for req. It never returns an error: every
// failure collapses into an unsuccessful DownloadResult. Concurrent calls
// for the same identifier and kind share a single acquisition.
func (s *AcquireService) Acquire(ctx context.Context, req domain.MediaRequest) (res domain.DownloadResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("acquisition panicked", "panic", r, "link", req.RawLink())
			res = domain.Failed(res.ID, fmt.Errorf("panic: %v", r))
		}
	}()

	id, err := resolver.Resolve(req.RawLink(), req.IsBareID())
	if err != nil {
		s.logger.Warn("cannot resolve media link",
			"link", req.RawLink(),
			"error_kind", domain.ErrorKind(err),
		)
		return domain.Failed("", domain.NewMediaError("", "resolve", err))
	}
	if !req.IsBareID() && !resolver.IsSupportedLink(req.RawLink()) {
		s.logger.Debug("link host not recognised, using it as an identifier", "link", req.RawLink(), "media_id", id.String())
	}

	key := string(req.Kind()) + ":" + id.String()
	v, _, shared := s.group.Do(key, func() (interface{}, error) {
		return s.acquireOnce(ctx, id, req.Kind()), nil
	})
	res = v.(domain.DownloadResult)

	if shared {
		s.logger.Debug("acquisition shared with concurrent caller", "media_id", id.String(), "kind", string(req.Kind()))
	}
	return res
}

// acquireOnce runs the strategies for one identifier and records the outcome.
func (s *AcquireService) acquireOnce(ctx context.Context, id domain.MediaID, kind domain.MediaKind) (res domain.DownloadResult) {
	start := time.Now()
	logger := s.logger.With("media_id", id.String(), "kind", string(kind))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("acquisition panicked", "panic", r)
			res = domain.Failed(id, fmt.Errorf("panic: %v", r))
		}
		s.record(ctx, kind, res, time.Since(start))
	}()

	if path, ok := s.store.Probe(id, kind); ok {
		logger.Info("cache hit", "path", path)
		return domain.DownloadResult{ID: id, Path: path, OK: true, Strategy: domain.StrategyCache}
	}

	var lastErr error

	res, lastErr = s.tryRemote(ctx, s.remote, id, kind, domain.StrategyRemote)
	if res.OK {
		logger.Info("acquired from conversion API", "path", res.Path)
		return res
	}
	logger.Warn("conversion API failed", "error", lastErr, "error_kind", domain.ErrorKind(lastErr))

	switch kind {
	case domain.KindVideo:
		if s.extractor == nil {
			break
		}
		location, err := s.extractor.Extract(ctx, resolver.CanonicalURL(id), kind)
		if err == nil {
			logger.Info("acquired from local extraction", "location", location)
			return domain.DownloadResult{ID: id, Path: location, OK: true, Strategy: domain.StrategyFallback}
		}
		lastErr = domain.NewMediaError(id, "extract", err)
		logger.Warn("local extraction failed", "error", err, "error_kind", domain.ErrorKind(err))

	default:
		if s.fallbackRemote == nil {
			break
		}
		res, err := s.tryRemote(ctx, s.fallbackRemote, id, kind, domain.StrategyFallback)
		if res.OK {
			logger.Info("acquired from fallback conversion API", "path", res.Path)
			return res
		}
		lastErr = err
		logger.Warn("fallback conversion API failed", "error", err, "error_kind", domain.ErrorKind(err))
	}

	logger.Error("media acquisition failed", "error_kind", domain.ErrorKind(lastErr))
	return domain.Failed(id, lastErr)
}

// tryRemote converts id through client and streams the result into the cache.
func (s *AcquireService) tryRemote(ctx context.Context, client RemoteClient, id domain.MediaID, kind domain.MediaKind, strategy domain.Strategy) (domain.DownloadResult, error) {
	if client == nil {
		return domain.Failed(id, nil), domain.NewMediaError(id, "remote", domain.ErrRemoteUnavailable)
	}
	if err := s.store.EnsureDir(); err != nil {
		return domain.Failed(id, err), domain.NewMediaError(id, "prepare", fmt.Errorf("%w: %v", domain.ErrFetchFailed, err))
	}
	if err := s.store.CheckSpace(s.storageCfg.MinFreeBytes); err != nil {
		return domain.Failed(id, err), domain.NewMediaError(id, "prepare", err)
	}

	loc, err := client.SubmitAndPoll(ctx, id, kind)
	if err != nil {
		return domain.Failed(id, err), err
	}

	dest := s.store.Path(id, loc.Format)
	n, err := s.fetcher.Fetch(ctx, loc.URL, dest, s.remoteCfg.TransferTimeout(kind))
	if err != nil {
		err = domain.NewMediaError(id, "fetch", err)
		return domain.Failed(id, err), err
	}

	s.logger.Debug("media fetched", "media_id", id.String(), "path", dest, "bytes", n)
	return domain.DownloadResult{ID: id, Path: dest, OK: true, Strategy: strategy}, nil
}

func (s *AcquireService) record(ctx context.Context, kind domain.MediaKind, res domain.DownloadResult, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	entry := repository.HistoryEntry{
		MediaID:   res.ID,
		Kind:      kind,
		Strategy:  res.Strategy,
		OK:        res.OK,
		Path:      res.Path,
		ErrorKind: domain.ErrorKind(res.Err),
		Duration:  elapsed,
	}
	// Record even when the caller has gone away.
	if err := s.history.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to record acquisition history", "media_id", res.ID.String(), "error", err)
	}
}

// Video acquires a video and reports (true, path) or (false, failure message).
func (s *AcquireService) Video(ctx context.Context, link string, isBareID bool) (bool, string) {
	res := s.Acquire(ctx, domain.NewMediaRequest(link, domain.KindVideo, isBareID))
	return res.OK, res.Message()
}

// Playlist lists up to limit entry ids of a playlist.
func (s *AcquireService) Playlist(ctx context.Context, link string, limit int, isBareID bool) ([]domain.MediaID, error) {
	if s.extractor == nil {
		return nil, ErrFallbackDisabled
	}

	id, err := resolver.ResolvePlaylist(link, isBareID)
	if err != nil {
		return nil, err
	}

	ids, err := s.extractor.ListPlaylist(ctx, resolver.PlaylistURL(id), limit)
	if err != nil {
		return nil, fmt.Errorf("list playlist: %w", err)
	}
	return ids, nil
}

// AcquireAll acquires every id with at most concurrency acquisitions in
// flight. Results are returned in input order.
func (s *AcquireService) AcquireAll(ctx context.Context, ids []domain.MediaID, kind domain.MediaKind, concurrency int) []domain.DownloadResult {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]domain.DownloadResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.Acquire(gctx, domain.NewMediaRequest(id.String(), kind, true))
			return nil
		})
	}
	g.Wait()

	return results
}

// Submit queues req for asynchronous acquisition. An unfinished job for the
// same request is returned instead of creating a new one.
func (s *AcquireService) Submit(ctx context.Context, req domain.MediaRequest) (*domain.Job, error) {
	if _, err := resolver.Resolve(req.RawLink(), req.IsBareID()); err != nil {
		return nil, err
	}

	if existing, err := s.jobRepo.GetByRequest(ctx, req); err == nil && !existing.IsFinished() {
		return existing, nil
	}

	jobID := domain.JobID("job_" + uuid.New().String()[:8])
	job := domain.NewJob(jobID, req, s.workerCfg.MaxRetries)

	if err := s.jobRepo.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.logger.Info("acquisition submitted",
		"job_id", jobID,
		"link", req.RawLink(),
		"kind", string(req.Kind()),
	)

	return job, nil
}

// PendingJobs lists queued and retrying jobs, oldest first.
func (s *AcquireService) PendingJobs(ctx context.Context) ([]*domain.Job, error) {
	jobs, err := s.jobRepo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(jobs, func(a, b *domain.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

// Forget removes every cached file for req so the next acquisition starts
// from the remote strategies.
func (s *AcquireService) Forget(req domain.MediaRequest) error {
	id, err := resolver.Resolve(req.RawLink(), req.IsBareID())
	if err != nil {
		return err
	}
	if err := s.store.Remove(id, req.Kind()); err != nil {
		return fmt.Errorf("forget %s: %w", id, err)
	}
	s.logger.Info("cache entry removed", "media_id", id.String(), "kind", string(req.Kind()))
	return nil
}

// GetJob returns a job by ID.
func (s *AcquireService) GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	return s.jobRepo.Get(ctx, id)
}

// History returns the most recent acquisitions, newest first.
func (s *AcquireService) History(ctx context.Context, limit int) ([]repository.HistoryEntry, error) {
	if s.history == nil {
		return []repository.HistoryEntry{}, nil
	}
	return s.history.Recent(ctx, limit)
}

// Stats summarises the queue and the download directory.
type Stats struct {
	Queue       *repository.QueueStats `json:"queue"`
	DownloadDir string                 `json:"download_dir"`
	FreeBytes   int64                  `json:"free_bytes"`
}

// Stats returns queue statistics and free disk space.
func (s *AcquireService) Stats(ctx context.Context) (*Stats, error) {
	queue, err := s.jobRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &Stats{
		Queue:       queue,
		DownloadDir: s.store.Dir(),
		FreeBytes:   s.store.FreeBytes(),
	}, nil
}

// CheckRemote probes the conversion API base URL.
func (s *AcquireService) CheckRemote(ctx context.Context) (*downloader.ProbeResult, error) {
	return s.fetcher.Probe(ctx, s.remoteCfg.BaseURL)
}
