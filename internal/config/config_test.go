package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			BotToken:    "123:abc",
			Mode:        ModePolling,
			WebhookPath: "/telegram/webhook",
		},
		Storage: StorageConfig{
			DownloadPath: "downloads",
		},
		Worker: WorkerConfig{
			Count: 4,
		},
		Download: DownloadConfig{
			Timeout: 10 * time.Minute,
		},
	}
}

func TestConfig_Validate_Success(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() should pass, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing bot token",
			mutate:  func(c *Config) { c.Telegram.BotToken = "" },
			wantErr: "TELEGRAM_BOT_TOKEN",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Telegram.Mode = "carrier-pigeon" },
			wantErr: "TELEGRAM_MODE",
		},
		{
			name:    "webhook without app url",
			mutate:  func(c *Config) { c.Telegram.Mode = ModeWebhook },
			wantErr: "TELEGRAM_APP_URL",
		},
		{
			name: "webhook path without slash",
			mutate: func(c *Config) {
				c.Telegram.Mode = ModeWebhook
				c.Telegram.AppURL = "https://bot.example.com"
				c.Telegram.WebhookPath = "hook"
			},
			wantErr: "TELEGRAM_WEBHOOK_PATH",
		},
		{
			name:    "missing download path",
			mutate:  func(c *Config) { c.Storage.DownloadPath = "" },
			wantErr: "STORAGE_DOWNLOAD_PATH",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Worker.Count = 0 },
			wantErr: "WORKER_COUNT",
		},
		{
			name:    "zero download timeout",
			mutate:  func(c *Config) { c.Download.Timeout = 0 },
			wantErr: "DOWNLOAD_TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_WebhookMode(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Mode = ModeWebhook
	cfg.Telegram.AppURL = "https://bot.example.com"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() should pass, got %v", err)
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		name string
		cfg  ServerConfig
		want string
	}{
		{
			name: "default",
			cfg:  ServerConfig{Host: "0.0.0.0", Port: 8080},
			want: "0.0.0.0:8080",
		},
		{
			name: "localhost",
			cfg:  ServerConfig{Host: "localhost", Port: 9000},
			want: "localhost:9000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Address(); got != tt.want {
				t.Errorf("Address() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTelegramConfig_WebhookURL(t *testing.T) {
	tests := []struct {
		appURL string
		path   string
		want   string
	}{
		{"https://bot.example.com", "/telegram/webhook", "https://bot.example.com/telegram/webhook/s3cr3t"},
		{"https://bot.example.com/", "/hook/", "https://bot.example.com/hook/s3cr3t"},
	}

	for _, tt := range tests {
		cfg := TelegramConfig{AppURL: tt.appURL, WebhookPath: tt.path, WebhookSecret: "s3cr3t"}
		if got := cfg.WebhookURL(); got != tt.want {
			t.Errorf("WebhookURL() = %q, want %q", got, tt.want)
		}
	}
}

func TestTelegramConfig_Secret(t *testing.T) {
	a := TelegramConfig{BotToken: "123:abc"}
	b := TelegramConfig{BotToken: "456:def"}

	secret := a.Secret()
	if len(secret) != 32 {
		t.Errorf("derived secret length = %d, want 32", len(secret))
	}
	if secret != a.Secret() {
		t.Error("derived secret should be stable")
	}
	if secret == b.Secret() {
		t.Error("different tokens should derive different secrets")
	}
	if strings.Contains(a.WebhookURL(), "123:abc") {
		t.Errorf("webhook URL leaks the bot token: %s", a.WebhookURL())
	}

	a.WebhookSecret = "explicit"
	if got := a.Secret(); got != "explicit" {
		t.Errorf("Secret() = %q, want explicit", got)
	}
}

func TestConfig_Validate_WebhookSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Mode = ModeWebhook
	cfg.Telegram.AppURL = "https://bot.example.com"
	cfg.Telegram.WebhookSecret = "a/b"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should reject a secret spanning path segments")
	}
}

func TestLoad_FromYAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// envconfig applies defaults over YAML values, so only fields without a
	// default tag keep their YAML value when the environment is empty.
	t.Setenv("SERVER_HOST", "localhost")
	t.Setenv("PORT", "9000")

	yamlContent := `
telegram:
  bot_token: "yaml-token"
server:
  api_key: "yaml-api-key"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.BotToken != "yaml-token" {
		t.Errorf("BotToken = %q, want %q", cfg.Telegram.BotToken, "yaml-token")
	}
	if cfg.Server.APIKey != "yaml-api-key" {
		t.Errorf("APIKey = %q, want %q", cfg.Server.APIKey, "yaml-api-key")
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Host = %q, want %q", cfg.Server.Host, "localhost")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
telegram:
  bot_token: "yaml-token"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("STORAGE_DOWNLOAD_PATH", "/env/downloads")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.BotToken != "env-token" {
		t.Errorf("BotToken = %q, want %q (env should override)", cfg.Telegram.BotToken, "env-token")
	}
	if cfg.Storage.DownloadPath != "/env/downloads" {
		t.Errorf("DownloadPath = %q, want %q", cfg.Storage.DownloadPath, "/env/downloads")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.Mode != ModePolling {
		t.Errorf("Mode = %q, want %q", cfg.Telegram.Mode, ModePolling)
	}
	if cfg.Storage.DownloadPath != "downloads" {
		t.Errorf("DownloadPath = %q, want %q", cfg.Storage.DownloadPath, "downloads")
	}
	if cfg.Media.AudioBitrate != "192k" {
		t.Errorf("AudioBitrate = %q, want %q", cfg.Media.AudioBitrate, "192k")
	}
	if cfg.Download.Timeout != 10*time.Minute {
		t.Errorf("Download.Timeout = %v, want 10m", cfg.Download.Timeout)
	}
	if cfg.Thumbnail.MaxBytes != 10*1024*1024 {
		t.Errorf("Thumbnail.MaxBytes = %d, want 10MB", cfg.Thumbnail.MaxBytes)
	}
	if cfg.Worker.Count != 4 {
		t.Errorf("Worker.Count = %d, want 4", cfg.Worker.Count)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("telegram: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load should fail for invalid YAML")
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load should fail for nonexistent file")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	if _, err := Load(""); err == nil {
		t.Error("Load should fail without a bot token")
	}
}
