package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Transport modes for receiving Telegram updates.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Storage   StorageConfig   `yaml:"storage"`
	Media     MediaConfig     `yaml:"media"`
	Download  DownloadConfig  `yaml:"download"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Worker    WorkerConfig    `yaml:"worker"`
	Events    EventsConfig    `yaml:"events"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host              string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port              int           `yaml:"port" envconfig:"PORT" default:"8080"`
	APIKey            string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout       time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval" envconfig:"KEEPALIVE_INTERVAL" default:"10m"`
}

// TelegramConfig holds bot API configuration.
type TelegramConfig struct {
	BotToken    string `yaml:"bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
	Mode        string `yaml:"mode" envconfig:"TELEGRAM_MODE" default:"polling"`
	AppURL      string `yaml:"app_url" envconfig:"TELEGRAM_APP_URL"`
	WebhookPath string `yaml:"webhook_path" envconfig:"TELEGRAM_WEBHOOK_PATH" default:"/telegram/webhook"`
	// WebhookSecret is the final webhook path segment. Derived from the
	// bot token when empty.
	WebhookSecret string `yaml:"webhook_secret" envconfig:"TELEGRAM_WEBHOOK_SECRET"`
	PollTimeout   int    `yaml:"poll_timeout" envconfig:"TELEGRAM_POLL_TIMEOUT" default:"60"`
	WelcomeImage  string `yaml:"welcome_image" envconfig:"TELEGRAM_WELCOME_IMAGE" default:"https://envs.sh/C_W.jpg"`
	Signature     string `yaml:"signature" envconfig:"TELEGRAM_SIGNATURE"`
	Debug         bool   `yaml:"debug" envconfig:"TELEGRAM_DEBUG" default:"false"`
}

// StorageConfig holds filesystem configuration for transient artifacts.
type StorageConfig struct {
	DownloadPath string `yaml:"download_path" envconfig:"STORAGE_DOWNLOAD_PATH" default:"downloads"`
}

// MediaConfig holds yt-dlp and ffmpeg configuration.
type MediaConfig struct {
	YtDLPPath    string `yaml:"ytdlp_path" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	FFmpegPath   string `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath  string `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH" default:"ffprobe"`
	AudioBitrate string `yaml:"audio_bitrate" envconfig:"AUDIO_BITRATE" default:"192k"`
}

// DownloadConfig holds timeouts for search and audio download.
type DownloadConfig struct {
	SearchTimeout time.Duration `yaml:"search_timeout" envconfig:"SEARCH_TIMEOUT" default:"30s"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"10m"`
}

// ThumbnailConfig holds cover art fetch configuration.
type ThumbnailConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"THUMBNAIL_TIMEOUT" default:"15s"`
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"THUMBNAIL_MAX_ATTEMPTS" default:"2"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"THUMBNAIL_RETRY_DELAY" default:"500ms"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"THUMBNAIL_MAX_RETRY_DELAY" default:"2s"`
	MaxBytes      int64         `yaml:"max_bytes" envconfig:"THUMBNAIL_MAX_BYTES" default:"10485760"` // 10MB
	CacheSize     int           `yaml:"cache_size" envconfig:"THUMBNAIL_CACHE_SIZE" default:"256"`
	CacheTTL      time.Duration `yaml:"cache_ttl" envconfig:"THUMBNAIL_CACHE_TTL" default:"1h"`
	UserAgent     string        `yaml:"user_agent" envconfig:"THUMBNAIL_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count     int `yaml:"count" envconfig:"WORKER_COUNT" default:"4"`
	QueueSize int `yaml:"queue_size" envconfig:"WORKER_QUEUE_SIZE" default:"64"`
}

// EventsConfig holds the activity log configuration.
type EventsConfig struct {
	RingBufferSize int    `yaml:"ring_buffer_size" envconfig:"EVENTS_BUFFER_SIZE" default:"500"`
	SQLitePath     string `yaml:"sqlite_path" envconfig:"EVENTS_SQLITE_PATH"`
	RetentionDays  int    `yaml:"retention_days" envconfig:"EVENTS_RETENTION_DAYS" default:"30"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.AppURL == "" {
			return fmt.Errorf("TELEGRAM_APP_URL is required in webhook mode")
		}
		if !strings.HasPrefix(c.Telegram.WebhookPath, "/") {
			return fmt.Errorf("TELEGRAM_WEBHOOK_PATH must start with /")
		}
		if strings.ContainsAny(c.Telegram.WebhookSecret, "/?#") {
			return fmt.Errorf("TELEGRAM_WEBHOOK_SECRET must be a single path segment")
		}
	default:
		return fmt.Errorf("TELEGRAM_MODE must be %q or %q, got %q", ModePolling, ModeWebhook, c.Telegram.Mode)
	}
	if c.Storage.DownloadPath == "" {
		return fmt.Errorf("STORAGE_DOWNLOAD_PATH is required")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("DOWNLOAD_TIMEOUT must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Secret returns the webhook path secret.
func (c *TelegramConfig) Secret() string {
	if c.WebhookSecret != "" {
		return c.WebhookSecret
	}
	sum := sha256.Sum256([]byte(c.BotToken))
	return hex.EncodeToString(sum[:16])
}

// WebhookURL returns the public URL Telegram should post updates to.
func (c *TelegramConfig) WebhookURL() string {
	return strings.TrimSuffix(c.AppURL, "/") + strings.TrimSuffix(c.WebhookPath, "/") + "/" + c.Secret()
}
