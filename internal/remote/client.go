// Package remote talks to the conversion API that turns a media identifier
// into a downloadable file.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/domain"
)

// maxBodySize caps how much of a status response is read.
const maxBodySize = 64 * 1024

// statusResponse is the conversion API's job status payload.
type statusResponse struct {
	Status string `json:"status"`
	Link   string `json:"link"`
	Format string `json:"format"`
}

// Client submits conversion jobs and polls them until they finish.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	userAgent     string
	submitTimeout time.Duration
	maxPolls      int
	cfg           config.RemoteConfig
	limiter       *rate.Limiter
	clock         Clock
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithClock replaces the wall clock used between polls.
func WithClock(c Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// WithLimiter shares a rate limiter between clients.
func WithLimiter(l *rate.Limiter) Option {
	return func(cl *Client) { cl.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// NewLimiter builds the request limiter described by cfg. A non-positive
// rate disables limiting.
func NewLimiter(cfg config.RemoteConfig) *rate.Limiter {
	if cfg.RateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, cfg config.RemoteConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{},
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        cfg.APIKey,
		userAgent:     cfg.UserAgent,
		submitTimeout: cfg.SubmitTimeout,
		maxPolls:      cfg.MaxPolls,
		cfg:           cfg,
		clock:         RealClock{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(cfg)
	}
	if c.maxPolls <= 0 {
		c.maxPolls = 1
	}
	return c
}

// BaseURL returns the API endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitAndPoll submits id for conversion and polls until the job is done,
// rejected, unreachable or out of attempts. The first request is the
// submission; every later request is a poll of the same endpoint.
func (c *Client) SubmitAndPoll(ctx context.Context, id domain.MediaID, kind domain.MediaKind) (domain.RemoteLocation, error) {
	logger := c.logger.With("media_id", id.String(), "kind", string(kind))
	backoff := c.cfg.Backoff(kind)

	for attempt := 1; attempt <= c.maxPolls; attempt++ {
		status, err := c.check(ctx, id, kind)
		if err != nil {
			return domain.RemoteLocation{}, domain.NewMediaError(id, "remote status", err)
		}

		remoteStatus := domain.RemoteStatus(strings.ToLower(strings.TrimSpace(status.Status)))
		logger.Debug("remote job status", "attempt", attempt, "status", string(remoteStatus))

		switch {
		case remoteStatus == domain.RemoteDone:
			if status.Link == "" {
				return domain.RemoteLocation{}, domain.NewMediaError(id, "remote status",
					fmt.Errorf("%w: done without link", domain.ErrRemoteRejected))
			}
			return domain.RemoteLocation{
				URL:    status.Link,
				Format: normalizeFormat(status.Format, kind),
			}, nil

		case remoteStatus.InProgress():
			if attempt == c.maxPolls {
				break
			}
			if err := c.clock.Sleep(ctx, backoff); err != nil {
				return domain.RemoteLocation{}, domain.NewMediaError(id, "remote poll", err)
			}

		default:
			return domain.RemoteLocation{}, domain.NewMediaError(id, "remote status",
				fmt.Errorf("%w: status %q", domain.ErrRemoteRejected, status.Status))
		}
	}

	return domain.RemoteLocation{}, domain.NewMediaError(id, "remote poll",
		fmt.Errorf("%w after %d attempts", domain.ErrRemoteTimeout, c.maxPolls))
}

// check performs one status request.
func (c *Client) check(ctx context.Context, id domain.MediaID, kind domain.MediaKind) (*statusResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrRemoteUnavailable, err)
	}

	reqCtx := ctx
	if c.submitTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.submitTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint(id, kind), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrRemoteUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, fmt.Errorf("%w: status code %d", domain.ErrRemoteUnavailable, resp.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRemoteUnavailable, err)
	}

	return &status, nil
}

func (c *Client) endpoint(id domain.MediaID, kind domain.MediaKind) string {
	u := c.baseURL + "/" + kind.Endpoint() + "/" + url.PathEscape(id.String())
	if c.apiKey != "" {
		u += "?" + url.Values{"api": {c.apiKey}}.Encode()
	}
	return u
}

// normalizeFormat keeps the declared format when it belongs to the kind's
// extension set and falls back to the kind's default otherwise.
func normalizeFormat(format string, kind domain.MediaKind) string {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if kind.AllowsExtension(format) {
		return format
	}
	return kind.DefaultExtension()
}
