package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/creditdesk/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "2m"
log_level = "debug"

[api]
base_path = "/api"

[api.pagination]
default_page_size = 25
max_page_size = 50

[backend]
base_url = "http://analysis:8000/"
timeout = "20s"

[review]
poll_interval = "2s"

[auth]
mode = "none"

[database]
host = "localhost"
port = 5432
name = "creditdesk"
user = "creditdesk"
password = "creditdesk"

[storage]
enabled = true
container_name = "receipts"
connection_string = "DefaultEndpointsProtocol=http;AccountName=creditdesk;AccountKey=key;BlobEndpoint=http://127.0.0.1:10000/creditdesk;"
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[review]
default_reviewer = "Senior Underwriter"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func loadFrom(t *testing.T, files map[string]string) (*config.Config, error) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeConfig(t, dir, name, content)
	}
	t.Chdir(dir)
	return config.Load()
}

func TestLoad(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{config.BaseConfigFile: baseConfig})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.SlogLevel() != slog.LevelDebug {
		t.Errorf("log level: got %v", cfg.Server.SlogLevel())
	}
	if cfg.Backend.BaseURL != "http://analysis:8000" {
		t.Errorf("backend url: got %q, want trailing slash trimmed", cfg.Backend.BaseURL)
	}
	if cfg.Backend.TimeoutDuration() != 20*time.Second {
		t.Errorf("backend timeout: got %v", cfg.Backend.TimeoutDuration())
	}
	if cfg.Review.PollIntervalDuration() != 2*time.Second {
		t.Errorf("poll interval: got %v", cfg.Review.PollIntervalDuration())
	}
	if !cfg.Storage.Enabled || cfg.Storage.ContainerName != "receipts" {
		t.Errorf("storage: got %+v", cfg.Storage)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.API.Pagination.DefaultPageSize)
	}
}

func TestReviewDefaults(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{config.BaseConfigFile: baseConfig})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	r := cfg.Review
	if r.DefaultReviewer != "Credit Officer" {
		t.Errorf("default reviewer: got %q", r.DefaultReviewer)
	}
	if r.DashboardIntervalDuration() != 5*time.Second {
		t.Errorf("dashboard interval: got %v", r.DashboardIntervalDuration())
	}
	if r.NoticeTTLDuration() != 5*time.Second {
		t.Errorf("notice ttl: got %v", r.NoticeTTLDuration())
	}
	if r.ViewIdleTimeoutDuration() != 15*time.Minute {
		t.Errorf("view idle timeout: got %v", r.ViewIdleTimeoutDuration())
	}
	if r.DashboardLimit != 50 {
		t.Errorf("dashboard limit: got %d", r.DashboardLimit)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	t.Setenv(config.EnvCreditdeskEnv, "staging")

	cfg, err := loadFrom(t, map[string]string{
		config.BaseConfigFile: baseConfig,
		"config.staging.toml": overlayConfig,
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if cfg.Review.DefaultReviewer != "Senior Underwriter" {
		t.Errorf("reviewer: got %q (from overlay)", cfg.Review.DefaultReviewer)
	}
	if cfg.Review.PollInterval != "2s" {
		t.Errorf("poll interval: got %q (from base)", cfg.Review.PollInterval)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	t.Setenv("CREDITDESK_VERSION", "2.0.0")
	t.Setenv("CREDITDESK_SERVER_PORT", "3000")
	t.Setenv("CREDITDESK_SERVER_LOG_FORMAT", "json")
	t.Setenv("CREDITDESK_BACKEND_URL", "https://analysis.internal")
	t.Setenv("CREDITDESK_REVIEW_NOTICE_TTL", "10s")
	t.Setenv("CREDITDESK_STORAGE_CONTAINER_NAME", "archive")

	cfg, err := loadFrom(t, map[string]string{config.BaseConfigFile: baseConfig})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if _, ok := cfg.Server.LogHandler(io.Discard).(*slog.JSONHandler); !ok {
		t.Errorf("log format: got %q, want json handler", cfg.Server.LogFormat)
	}
	if cfg.Backend.BaseURL != "https://analysis.internal" {
		t.Errorf("backend url: got %q", cfg.Backend.BaseURL)
	}
	if cfg.Review.NoticeTTLDuration() != 10*time.Second {
		t.Errorf("notice ttl: got %v", cfg.Review.NoticeTTLDuration())
	}
	if cfg.Storage.ContainerName != "archive" {
		t.Errorf("storage container: got %q", cfg.Storage.ContainerName)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	t.Setenv("CREDITDESK_AUTH_MODE", "none")
	t.Setenv("CREDITDESK_DB_DSN", "postgres://creditdesk@localhost/creditdesk")

	cfg, err := loadFrom(t, nil)
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Backend.BaseURL != "http://127.0.0.1:8000" {
		t.Errorf("backend default: got %q", cfg.Backend.BaseURL)
	}
	if cfg.Storage.Enabled {
		t.Error("storage should be disabled by default")
	}
	if cfg.Database.Dsn() != "postgres://creditdesk@localhost/creditdesk" {
		t.Errorf("dsn from env: got %q", cfg.Database.Dsn())
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	if _, err := loadFrom(t, map[string]string{config.BaseConfigFile: `[server`}); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestEnv(t *testing.T) {
	cfg := &config.Config{}
	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}

	t.Setenv(config.EnvCreditdeskEnv, "production")
	if cfg.Env() != "production" {
		t.Errorf("env: got %s, want production", cfg.Env())
	}
}

func TestServerAddr(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{config.BaseConfigFile: baseConfig})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if addr := cfg.Server.Addr(); addr != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", addr)
	}
	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
	if d := cfg.Server.ReadHeaderTimeoutDuration(); d != 10*time.Second {
		t.Errorf("read header timeout: got %v, want 10s", d)
	}
	if d := cfg.Server.IdleTimeoutDuration(); d != 2*time.Minute {
		t.Errorf("idle timeout: got %v, want 2m", d)
	}
}

func TestValidation(t *testing.T) {
	const valid = `
[auth]
mode = "none"

[database]
name = "creditdesk"
user = "creditdesk"
`
	tests := []struct {
		name    string
		extra   string
		wantErr string
	}{
		{"invalid port", "[server]\nport = 99999\n", "invalid port"},
		{"invalid log level", "[server]\nlog_level = \"loud\"\n", "invalid log_level"},
		{"invalid log format", "[server]\nlog_format = \"xml\"\n", "invalid log_format"},
		{"invalid header timeout", "[server]\nread_header_timeout = \"fast\"\n", "invalid read_header_timeout"},
		{"invalid backend url", "[backend]\nbase_url = \"analysis\"\n", "invalid base_url"},
		{"zero poll interval", "[review]\npoll_interval = \"0s\"\n", "poll_interval must be positive"},
		{"bad notice ttl", "[review]\nnotice_ttl = \"briefly\"\n", "invalid notice_ttl"},
		{"storage without credentials", "[storage]\nenabled = true\n", "connection_string or account_url required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFrom(t, map[string]string{config.BaseConfigFile: valid + tt.extra})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLocalAuthRequiresCredentials(t *testing.T) {
	const content = `
[auth]
mode = "local"

[database]
name = "creditdesk"
user = "creditdesk"
`
	_, err := loadFrom(t, map[string]string{config.BaseConfigFile: content})
	if err == nil || !strings.Contains(err.Error(), "auth: username required") {
		t.Errorf("got %v, want auth validation error", err)
	}
}

func TestAuthGateOnByDefault(t *testing.T) {
	const content = `
[database]
name = "creditdesk"
user = "creditdesk"
`
	_, err := loadFrom(t, map[string]string{config.BaseConfigFile: content})
	if err == nil || !strings.Contains(err.Error(), "auth: username required") {
		t.Fatalf("got %v, want local auth to be required without an explicit mode", err)
	}

	t.Setenv("CREDITDESK_AUTH_MODE", "none")
	cfg, err := loadFrom(t, map[string]string{config.BaseConfigFile: content})
	if err != nil {
		t.Fatalf("explicit none: %v", err)
	}
	if cfg.Auth.Mode != "none" {
		t.Errorf("mode: got %q", cfg.Auth.Mode)
	}
}
