package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/ytgrabba/internal/domain"
	"github.com/iconidentify/ytgrabba/internal/repository"
	"github.com/iconidentify/ytgrabba/internal/service"
)

// MediaService is the part of the acquisition service the HTTP API uses.
type MediaService interface {
	Acquire(ctx context.Context, req domain.MediaRequest) domain.DownloadResult
	Submit(ctx context.Context, req domain.MediaRequest) (*domain.Job, error)
	GetJob(ctx context.Context, id domain.JobID) (*domain.Job, error)
	PendingJobs(ctx context.Context) ([]*domain.Job, error)
	History(ctx context.Context, limit int) ([]repository.HistoryEntry, error)
	Playlist(ctx context.Context, link string, limit int, isBareID bool) ([]domain.MediaID, error)
	Stats(ctx context.Context) (*service.Stats, error)
}

const (
	defaultHistoryLimit  = 50
	maxHistoryLimit      = 500
	defaultPlaylistLimit = 25
	maxPlaylistLimit     = 200
)

// MediaHandler handles acquisition requests.
type MediaHandler struct {
	svc    MediaService
	logger *slog.Logger
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(svc MediaService, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		svc:    svc,
		logger: logger,
	}
}

// AcquireRequest is the JSON request body for acquisitions and job submissions.
type AcquireRequest struct {
	Link     string `json:"link"`
	Kind     string `json:"kind"`
	IsBareID bool   `json:"is_bare_id"`
}

// AcquireResponse is returned by a synchronous acquisition. Message carries
// the path on success and the uniform failure text otherwise.
type AcquireResponse struct {
	OK       bool   `json:"ok"`
	MediaID  string `json:"media_id,omitempty"`
	Path     string `json:"path,omitempty"`
	Strategy string `json:"strategy"`
	Message  string `json:"message"`
}

// JobResponse represents a queued acquisition.
type JobResponse struct {
	JobID     string           `json:"job_id"`
	Link      string           `json:"link"`
	Kind      string           `json:"kind"`
	Status    string           `json:"status"`
	Attempts  int              `json:"attempts"`
	Error     string           `json:"error,omitempty"`
	Result    *AcquireResponse `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobListResponse lists jobs waiting for a worker.
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Total int           `json:"total"`
}

// HistoryResponse lists recent acquisitions.
type HistoryResponse struct {
	Entries []repository.HistoryEntry `json:"entries"`
	Limit   int                       `json:"limit"`
}

// PlaylistResponse lists the entries of a playlist.
type PlaylistResponse struct {
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// Acquire handles POST /api/v1/acquire. It blocks until every strategy has
// been tried.
func (h *MediaHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	res := h.svc.Acquire(r.Context(), req)
	h.writeJSON(w, http.StatusOK, toAcquireResponse(res))
}

// Submit handles POST /api/v1/jobs
func (h *MediaHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	job, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidLink) {
			h.writeError(w, http.StatusBadRequest, "invalid media link")
			return
		}
		h.logger.Error("submit failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	h.writeJSON(w, http.StatusAccepted, toJobResponse(job))
}

// GetJob handles GET /api/v1/jobs/{jobID}
func (h *MediaHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job, err := h.svc.GetJob(r.Context(), domain.JobID(jobID))
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			h.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("get job failed", "job_id", jobID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.writeJSON(w, http.StatusOK, toJobResponse(job))
}

// ListJobs handles GET /api/v1/jobs
func (h *MediaHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.PendingJobs(r.Context())
	if err != nil {
		h.logger.Error("list jobs failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs)), Total: len(jobs)}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(job))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// History handles GET /api/v1/history
func (h *MediaHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultHistoryLimit, maxHistoryLimit)

	entries, err := h.svc.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("history failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []repository.HistoryEntry{}
	}

	h.writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Limit: limit})
}

// Playlist handles GET /api/v1/playlist?link=...&limit=N
func (h *MediaHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("link")
	if link == "" {
		h.writeError(w, http.StatusBadRequest, "missing link")
		return
	}
	limit := queryInt(r, "limit", defaultPlaylistLimit, maxPlaylistLimit)
	isBareID, _ := strconv.ParseBool(r.URL.Query().Get("is_bare_id"))

	ids, err := h.svc.Playlist(r.Context(), link, limit, isBareID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidLink):
			h.writeError(w, http.StatusBadRequest, "invalid playlist link")
		case errors.Is(err, service.ErrFallbackDisabled):
			h.writeError(w, http.StatusNotImplemented, "playlist listing is disabled")
		default:
			h.logger.Error("playlist failed", "link", link, "error", err)
			h.writeError(w, http.StatusBadGateway, "failed to list playlist")
		}
		return
	}

	resp := PlaylistResponse{IDs: make([]string, 0, len(ids)), Count: len(ids)}
	for _, id := range ids {
		resp.IDs = append(resp.IDs, id.String())
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Stats handles GET /api/v1/stats
func (h *MediaHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *MediaHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (domain.MediaRequest, bool) {
	var body AcquireRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return domain.MediaRequest{}, false
	}
	if body.Link == "" {
		h.writeError(w, http.StatusBadRequest, "missing link")
		return domain.MediaRequest{}, false
	}
	return domain.NewMediaRequest(body.Link, domain.ParseMediaKind(body.Kind), body.IsBareID), true
}

func toAcquireResponse(res domain.DownloadResult) AcquireResponse {
	resp := AcquireResponse{
		OK:       res.OK,
		MediaID:  res.ID.String(),
		Strategy: string(res.Strategy),
		Message:  res.Message(),
	}
	if res.OK {
		resp.Path = res.Path
	}
	return resp
}

func toJobResponse(job *domain.Job) JobResponse {
	resp := JobResponse{
		JobID:     job.ID.String(),
		Link:      job.Request.RawLink(),
		Kind:      string(job.Request.Kind()),
		Status:    string(job.Status),
		Attempts:  job.Attempts,
		Error:     job.LastError,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Result != nil {
		result := toAcquireResponse(*job.Result)
		resp.Result = &result
	}
	return resp
}

// queryInt parses a positive integer parameter, falling back to def when it
// is missing or invalid and capping it at ceiling.
func queryInt(r *http.Request, name string, def, ceiling int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if n > ceiling {
		return ceiling
	}
	return n
}

func (h *MediaHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *MediaHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
