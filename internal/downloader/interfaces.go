package downloader

import (
	"context"
	"time"
)

// Fetcher streams remote media into local files.
type Fetcher interface {
	// Fetch downloads url into dest and returns the number of bytes written.
	// On failure no partial file is left behind.
	Fetch(ctx context.Context, url, dest string, timeout time.Duration) (int64, error)

	// Probe checks URL accessibility without downloading full content.
	Probe(ctx context.Context, url string) (*ProbeResult, error)
}

// ProbeResult contains information about a media URL.
type ProbeResult struct {
	ContentType   string
	ContentLength int64
	Accessible    bool
	Error         string
}
