package config

import (
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Remote   RemoteConfig   `yaml:"remote"`
	Fallback FallbackConfig `yaml:"fallback"`
	Worker   WorkerConfig   `yaml:"worker"`
	History  HistoryConfig  `yaml:"history"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9847"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"15m"`
}

// StorageConfig holds the download cache configuration.
type StorageConfig struct {
	DownloadDir  string `yaml:"download_dir" envconfig:"DOWNLOAD_DIR" default:"downloads"`
	MinFreeBytes int64  `yaml:"min_free_bytes" envconfig:"MIN_FREE_BYTES" default:"52428800"` // 50MB
}

// RemoteConfig holds the conversion API configuration.
type RemoteConfig struct {
	BaseURL              string        `yaml:"base_url" envconfig:"REMOTE_API_URL" default:"https://shrutibots.site"`
	FallbackBaseURL      string        `yaml:"fallback_base_url" envconfig:"REMOTE_FALLBACK_API_URL"`
	APIKey               string        `yaml:"api_key" envconfig:"REMOTE_API_KEY"`
	SubmitTimeout        time.Duration `yaml:"submit_timeout" envconfig:"REMOTE_SUBMIT_TIMEOUT" default:"7s"`
	MaxPolls             int           `yaml:"max_polls" envconfig:"REMOTE_MAX_POLLS" default:"10"`
	AudioBackoff         time.Duration `yaml:"audio_backoff" envconfig:"REMOTE_AUDIO_BACKOFF" default:"4s"`
	VideoBackoff         time.Duration `yaml:"video_backoff" envconfig:"REMOTE_VIDEO_BACKOFF" default:"8s"`
	AudioTransferTimeout time.Duration `yaml:"audio_transfer_timeout" envconfig:"AUDIO_TRANSFER_TIMEOUT" default:"300s"`
	VideoTransferTimeout time.Duration `yaml:"video_transfer_timeout" envconfig:"VIDEO_TRANSFER_TIMEOUT" default:"600s"`
	RateLimit            float64       `yaml:"rate_limit" envconfig:"REMOTE_RATE_LIMIT" default:"5"`
	RateBurst            int           `yaml:"rate_burst" envconfig:"REMOTE_RATE_BURST" default:"10"`
	UserAgent            string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
	StallTimeout         time.Duration `yaml:"stall_timeout" envconfig:"DOWNLOAD_STALL_TIMEOUT" default:"60s"`
}

// FallbackConfig holds the local extraction tool configuration.
type FallbackConfig struct {
	Enabled     bool          `yaml:"enabled" envconfig:"FALLBACK_ENABLED" default:"true"`
	YtDlpPath   string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	CookieDir   string        `yaml:"cookie_dir" envconfig:"COOKIE_DIR" default:"cookies"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"FALLBACK_TIMEOUT" default:"2m"`
	VideoFormat string        `yaml:"video_format" envconfig:"FALLBACK_VIDEO_FORMAT" default:"best[height<=?720][width<=?1280]"`
	AudioFormat string        `yaml:"audio_format" envconfig:"FALLBACK_AUDIO_FORMAT" default:"bestaudio/best"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count        int           `yaml:"count" envconfig:"WORKER_COUNT" default:"2"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"WORKER_POLL_INTERVAL" default:"2s"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"WORKER_MAX_RETRIES" default:"1"`
}

// HistoryConfig holds the acquisition history store configuration.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"HISTORY_ENABLED" default:"true"`
	Path    string `yaml:"path" envconfig:"HISTORY_PATH" default:"data/history.db"`
}

// Load reads configuration from file and environment variables.
// Precedence is environment, then file, then defaults.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Defaults plus environment
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Load from YAML file if provided
	if configPath != "" {
		fromEnv := *cfg

		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		// Variables that are actually set win over the file
		restoreEnv(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(fromEnv))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// restoreEnv copies every field whose envconfig variable is present in the
// environment from src into dst.
func restoreEnv(dst, src reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if key := field.Tag.Get("envconfig"); key != "" {
			if _, ok := os.LookupEnv(key); ok {
				dst.Field(i).Set(src.Field(i))
			}
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			restoreEnv(dst.Field(i), src.Field(i))
		}
	}
}

// Validate checks that the values the acquisition pipeline needs are set.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("REMOTE_API_URL is required")
	}
	if c.Storage.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if c.Remote.MaxPolls <= 0 {
		return fmt.Errorf("REMOTE_MAX_POLLS must be positive, got %d", c.Remote.MaxPolls)
	}
	if c.Remote.AudioBackoff < 0 || c.Remote.VideoBackoff < 0 {
		return fmt.Errorf("remote backoff cannot be negative")
	}
	if c.Remote.SubmitTimeout <= 0 {
		return fmt.Errorf("REMOTE_SUBMIT_TIMEOUT must be positive")
	}
	if c.Fallback.Enabled && c.Fallback.YtDlpPath == "" {
		return fmt.Errorf("YTDLP_PATH is required when fallback is enabled")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("HISTORY_PATH is required when history is enabled")
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Backoff returns the sleep between status polls for kind.
func (c RemoteConfig) Backoff(kind domain.MediaKind) time.Duration {
	if kind == domain.KindVideo {
		return c.VideoBackoff
	}
	return c.AudioBackoff
}

// TransferTimeout returns the byte transfer budget for kind.
func (c RemoteConfig) TransferTimeout(kind domain.MediaKind) time.Duration {
	if kind == domain.KindVideo {
		return c.VideoTransferTimeout
	}
	return c.AudioTransferTimeout
}

// Format returns the yt-dlp format selector for kind.
func (c FallbackConfig) Format(kind domain.MediaKind) string {
	if kind == domain.KindVideo {
		return c.VideoFormat
	}
	return c.AudioFormat
}
