// Package extractor wraps the yt-dlp command line tool used when the
// conversion API cannot deliver a file.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/domain"
)

// maxStderr caps the tool output kept in errors.
const maxStderr = 512

var ansiPattern = regexp.MustCompile(`\x1B(?:[@-Z\\-_]|\[[0-?]*[ -/]*[@-~])`)

// YtDlp resolves direct media URLs and playlist entries with yt-dlp.
type YtDlp struct {
	path    string
	cfg     config.FallbackConfig
	cookies *CookiePicker
	runner  Runner
	logger  *slog.Logger
}

// NewYtDlp creates an extractor. A nil runner uses ExecRunner.
func NewYtDlp(cfg config.FallbackConfig, cookies *CookiePicker, runner Runner, logger *slog.Logger) *YtDlp {
	if runner == nil {
		runner = ExecRunner{}
	}
	if cookies == nil {
		cookies = NewCookiePicker(cfg.CookieDir, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YtDlp{
		path:    cfg.YtDlpPath,
		cfg:     cfg,
		cookies: cookies,
		runner:  runner,
		logger:  logger,
	}
}

// Extract asks yt-dlp for a directly playable URL for link. The first
// non-blank stdout line is returned.
func (y *YtDlp) Extract(ctx context.Context, link string, kind domain.MediaKind) (string, error) {
	cookie, err := y.cookies.Pick()
	if err != nil {
		return "", err
	}

	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	cmd := y.command().
		Cookies(cookie).
		GetURL().
		Format(y.cfg.Format(kind)).
		BuildCommand(ctx, link)

	start := time.Now()
	stdout, stderr, runErr := y.runner.Run(cmd)

	y.logger.Debug("yt-dlp finished",
		"link", link,
		"kind", string(kind),
		"duration", time.Since(start),
		"error", runErr,
	)

	if location := firstLine(stdout); location != "" {
		return location, nil
	}

	msg := cleanOutput(stderr)
	if msg == "" && runErr != nil {
		msg = runErr.Error()
	}
	if msg == "" {
		msg = "no output"
	}
	return "", fmt.Errorf("%w: %s", domain.ErrExtractionFailed, msg)
}

// ListPlaylist returns up to limit entry ids of the playlist at link using
// a flat listing.
func (y *YtDlp) ListPlaylist(ctx context.Context, link string, limit int) ([]domain.MediaID, error) {
	if limit <= 0 {
		return nil, errors.New("playlist limit must be positive")
	}

	ctx, cancel := y.withTimeout(ctx)
	defer cancel()

	cmd := y.command().
		IgnoreErrors().
		GetID().
		FlatPlaylist().
		PlaylistItems(fmt.Sprintf("1-%d", limit)).
		BuildCommand(ctx, link)

	stdout, stderr, runErr := y.runner.Run(cmd)

	var ids []domain.MediaID
	for _, line := range strings.Split(string(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ids = append(ids, domain.MediaID(line))
		if len(ids) == limit {
			break
		}
	}

	if len(ids) == 0 && runErr != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrExtractionFailed, firstNonEmpty(cleanOutput(stderr), runErr.Error()))
	}
	return ids, nil
}

func (y *YtDlp) command() *ytdlp.Command {
	return ytdlp.New().SetExecutable(y.path).IgnoreConfig()
}

func (y *YtDlp) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if y.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, y.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func firstLine(out []byte) string {
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// cleanOutput strips terminal escapes and truncates tool output.
func cleanOutput(out []byte) string {
	s := strings.TrimSpace(ansiPattern.ReplaceAllString(string(out), ""))
	if len(s) > maxStderr {
		s = s[:maxStderr] + "..."
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
