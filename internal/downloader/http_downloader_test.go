package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/domain"
)

func testConfig() config.RemoteConfig {
	return config.RemoteConfig{
		SubmitTimeout: 5 * time.Second,
		UserAgent:     "test-agent",
	}
}

func newTestDownloader() *HTTPDownloader {
	dl := NewHTTPDownloader(testConfig())
	dl.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return dl
}

// assertNoFiles fails when dest or its partial file exists.
func assertNoFiles(t *testing.T, dest string) {
	t.Helper()
	for _, p := range []string{dest, dest + partialSuffix} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should not exist (err=%v)", filepath.Base(p), err)
		}
	}
}

func TestNewHTTPDownloader(t *testing.T) {
	dl := NewHTTPDownloader(testConfig())

	if dl == nil {
		t.Fatal("downloader should not be nil")
	}
	if dl.userAgent != "test-agent" {
		t.Errorf("userAgent = %q, want %q", dl.userAgent, "test-agent")
	}
	if dl.client == nil || dl.streamClient == nil {
		t.Error("clients should not be nil")
	}
	if dl.streamClient.CheckRedirect == nil {
		t.Error("stream client must not follow redirects automatically")
	}
}

// =============================================================================
// Fetch Tests
// =============================================================================

func TestHTTPDownloader_Fetch_Success(t *testing.T) {
	content := bytes.Repeat([]byte("a"), 40*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, want %q", ua, "test-agent")
		}
		w.Write(content)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "abc123.mp3")
	n, err := newTestDownloader().Fetch(context.Background(), server.URL, dest, time.Minute)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("bytes = %d, want %d", n, len(content))
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("written content does not match")
	}
	if _, err := os.Stat(dest + partialSuffix); !os.IsNotExist(err) {
		t.Error("partial file should be renamed away")
	}
}

func TestHTTPDownloader_Fetch_FollowsOneRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/file")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("redirected content"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "abc123.mp4")
	n, err := newTestDownloader().Fetch(context.Background(), server.URL+"/start", dest, time.Minute)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if n != int64(len("redirected content")) {
		t.Errorf("bytes = %d", n)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "redirected content" {
		t.Errorf("content = %q", data)
	}
}

func TestHTTPDownloader_Fetch_AbsoluteRedirect(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cdn"))
	}))
	defer target.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/abc123.mp3", http.StatusFound)
	}))
	defer origin.Close()

	dest := filepath.Join(t.TempDir(), "abc123.mp3")
	if _, err := newTestDownloader().Fetch(context.Background(), origin.URL, dest, time.Minute); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
}

func TestHTTPDownloader_Fetch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "redirect without location",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusFound)
			},
		},
		{
			name: "moved permanently is not followed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/file" {
					w.Write([]byte("data"))
					return
				}
				http.Redirect(w, r, "/file", http.StatusMovedPermanently)
			},
		},
		{
			name: "redirect target fails",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/file" {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				http.Redirect(w, r, "/file", http.StatusFound)
			},
		},
		{
			name: "second redirect is not followed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/final":
					w.Write([]byte("data"))
				case "/file":
					http.Redirect(w, r, "/final", http.StatusFound)
				default:
					http.Redirect(w, r, "/file", http.StatusFound)
				}
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "abc123.mp3")
			n, err := newTestDownloader().Fetch(context.Background(), server.URL+"/start", dest, time.Minute)
			if !errors.Is(err, domain.ErrFetchFailed) {
				t.Fatalf("error = %v, want ErrFetchFailed", err)
			}
			if n != 0 {
				t.Errorf("bytes = %d, want 0", n)
			}
			assertNoFiles(t, dest)
		})
	}
}

func TestHTTPDownloader_Fetch_InterruptedBodyLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100000")
		w.WriteHeader(http.StatusOK)
		w.Write(bytes.Repeat([]byte("x"), 20000))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "abc123.mp4")
	_, err := newTestDownloader().Fetch(context.Background(), server.URL, dest, time.Minute)
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
	assertNoFiles(t, dest)
}

func TestHTTPDownloader_Fetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("start"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "abc123.mp4")
	_, err := newTestDownloader().Fetch(context.Background(), server.URL, dest, 50*time.Millisecond)
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
	assertNoFiles(t, dest)
}

func TestHTTPDownloader_Fetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	dest := filepath.Join(t.TempDir(), "abc123.mp3")
	_, err := newTestDownloader().Fetch(context.Background(), url, dest, time.Minute)
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
	assertNoFiles(t, dest)
}

func TestHTTPDownloader_Fetch_UnwritableDestination(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "missing-dir", "abc123.mp3")
	_, err := newTestDownloader().Fetch(context.Background(), server.URL, dest, time.Minute)
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Fatalf("error = %v, want ErrFetchFailed", err)
	}
	if !strings.Contains(err.Error(), "partial file") {
		t.Errorf("error = %v, want partial file context", err)
	}
}

// =============================================================================
// Probe Tests
// =============================================================================

func TestHTTPDownloader_Probe_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Probe should use HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", "1024")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result, err := newTestDownloader().Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if !result.Accessible {
		t.Error("Accessible should be true")
	}
	if result.ContentType != "audio/mpeg" {
		t.Errorf("ContentType = %q, want %q", result.ContentType, "audio/mpeg")
	}
	if result.ContentLength != 1024 {
		t.Errorf("ContentLength = %d, want 1024", result.ContentLength)
	}
}

func TestHTTPDownloader_Probe_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := newTestDownloader().Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe should not return error: %v", err)
	}

	if result.Accessible {
		t.Error("Accessible should be false for 404")
	}
	if result.Error == "" {
		t.Error("Error should contain status code")
	}
}

func TestHTTPDownloader_Probe_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result, err := newTestDownloader().Probe(context.Background(), url)
	if err != nil {
		t.Fatalf("Probe should not return error for network failures: %v", err)
	}
	if result.Accessible {
		t.Error("Accessible should be false for network errors")
	}
	if result.Error == "" {
		t.Error("Error should contain network error message")
	}
}

// =============================================================================
// progressReader Tests
// =============================================================================

func TestProgressReader_CountsBytes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	body := io.NopCloser(strings.NewReader("hello world"))
	pr := newProgressReader(body, 11, 0, logger, "http://example.com")

	data, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("data = %q", data)
	}
	if pr.downloaded != 11 {
		t.Errorf("downloaded = %d, want 11", pr.downloaded)
	}
	if err := pr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := pr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
