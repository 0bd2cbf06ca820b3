package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/domain"
)

// chunkSize is the copy buffer used when streaming a body to disk.
const chunkSize = 16 * 1024

// partialSuffix marks a file that is still being written.
const partialSuffix = ".part"

// HTTPDownloader implements Fetcher using HTTP requests.
type HTTPDownloader struct {
	// client is used for short requests (Probe) with overall timeout
	client *http.Client
	// streamClient never follows redirects; Fetch handles one hop itself
	streamClient *http.Client
	userAgent    string
	stallTimeout time.Duration
	logger       *slog.Logger
}

// NewHTTPDownloader creates a new HTTP-based media fetcher.
func NewHTTPDownloader(cfg config.RemoteConfig) *HTTPDownloader {
	streamTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: cfg.SubmitTimeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:    cfg.UserAgent,
		stallTimeout: cfg.StallTimeout,
		logger:       slog.Default(),
	}
}

// SetLogger sets the logger for download progress reporting.
func (d *HTTPDownloader) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// Fetch streams url into dest. A 302 answer is followed exactly once. The
// body is written to dest+".part" and renamed into place when complete; on
// any failure both files are removed and the error wraps ErrFetchFailed.
func (d *HTTPDownloader) Fetch(ctx context.Context, url, dest string, timeout time.Duration) (int64, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := d.open(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	n, err := d.writeFile(resp, dest, url)
	if err != nil {
		os.Remove(dest + partialSuffix)
		os.Remove(dest)
		return 0, fmt.Errorf("%w: %v", domain.ErrFetchFailed, err)
	}

	return n, nil
}

// open issues the GET and resolves at most one redirect hop.
func (d *HTTPDownloader) open(ctx context.Context, url string) (*http.Response, error) {
	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil

	case http.StatusFound:
		location := resp.Header.Get("Location")
		discard(resp)
		if location == "" {
			return nil, errors.New("redirect without location")
		}
		target, err := resp.Request.URL.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parse redirect location: %w", err)
		}

		redirected, err := d.get(ctx, target.String())
		if err != nil {
			return nil, err
		}
		if redirected.StatusCode != http.StatusOK {
			discard(redirected)
			return nil, fmt.Errorf("redirect target status code: %d", redirected.StatusCode)
		}
		return redirected, nil

	default:
		discard(resp)
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

func (d *HTTPDownloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "audio/*,video/*;q=0.9,*/*;q=0.8")

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

func (d *HTTPDownloader) writeFile(resp *http.Response, dest, url string) (int64, error) {
	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			size, _ = strconv.ParseInt(cl, 10, 64)
		}
	}

	partial := dest + partialSuffix
	f, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("create partial file: %w", err)
	}

	reader := newProgressReader(resp.Body, size, d.stallTimeout, d.logger, url)
	buf := make([]byte, chunkSize)
	// Hide ReadFrom so the copy goes through buf.
	n, copyErr := io.CopyBuffer(struct{ io.Writer }{f}, reader, buf)
	reader.Close()
	closeErr := f.Close()

	if copyErr != nil {
		return 0, fmt.Errorf("copy body: %w", copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close partial file: %w", closeErr)
	}
	if n == 0 {
		return 0, errors.New("empty body")
	}

	if err := os.Rename(partial, dest); err != nil {
		return 0, fmt.Errorf("rename partial file: %w", err)
	}
	return n, nil
}

// Probe checks URL accessibility without downloading full content.
func (d *HTTPDownloader) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return &ProbeResult{
			Accessible: false,
			Error:      err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	result := &ProbeResult{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Accessible:    resp.StatusCode == http.StatusOK,
	}

	if !result.Accessible {
		result.Error = fmt.Sprintf("status code %d", resp.StatusCode)
	}

	return result, nil
}

func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, chunkSize))
	resp.Body.Close()
}

// progressReader wraps an io.ReadCloser to track download progress
// and detect stalls (no data for readTimeout).
type progressReader struct {
	reader      io.ReadCloser
	total       int64
	downloaded  int64
	readTimeout time.Duration
	lastRead    time.Time
	lastLog     time.Time
	logger      *slog.Logger
	url         string
	mu          sync.Mutex
	closed      bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, logger *slog.Logger, url string) *progressReader {
	now := time.Now()
	return &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastRead:    now,
		lastLog:     now,
		logger:      logger,
		url:         url,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if n > 0 {
		p.downloaded += int64(n)
		p.lastRead = now

		// Log progress every 30 seconds
		if now.Sub(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = now
		}
	}

	// Check for stall on any read (including zero-byte reads)
	if err == nil && p.readTimeout > 0 && now.Sub(p.lastRead) > p.readTimeout {
		return n, fmt.Errorf("download stalled: no data received for %v", p.readTimeout)
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	if p.downloaded > 0 {
		p.logProgress()
	}
	p.mu.Unlock()

	return p.reader.Close()
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Debug("download progress",
			"url", p.url,
			"downloaded_kb", p.downloaded/1024,
			"total_kb", p.total/1024,
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Debug("download progress",
			"url", p.url,
			"downloaded_kb", p.downloaded/1024,
		)
	}
}
