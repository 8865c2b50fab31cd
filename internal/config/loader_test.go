package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/daimoniac/cvealert/internal/errors"
)

// isolate points CVEALERT_CONFIG at a path that does not exist so a developer's
// local cvealert.yml never leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CVEALERT_CONFIG", filepath.Join(dir, "missing.yml"))
	return dir
}

func writeDefaults(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "cvealert.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CVEALERT_CONFIG", path)
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !reflect.DeepEqual(cfg.Vendors, DefaultVendors) {
		t.Errorf("Expected default vendors %v, got %v", DefaultVendors, cfg.Vendors)
	}
	if cfg.Watcher.PollInterval != time.Hour {
		t.Errorf("Expected 1h poll interval, got %v", cfg.Watcher.PollInterval)
	}
	if cfg.Filter.MaxAgeDays != 15 {
		t.Errorf("Expected 15 day window, got %d", cfg.Filter.MaxAgeDays)
	}
	if cfg.Feed.ResultsPerPage != 2000 {
		t.Errorf("Expected 2000 results per page, got %d", cfg.Feed.ResultsPerPage)
	}
	if cfg.Notifier.Type != "telegram" {
		t.Errorf("Expected telegram notifier, got %s", cfg.Notifier.Type)
	}
	if cfg.StateStore.Dir != "./json_data" {
		t.Errorf("Expected ./json_data state dir, got %s", cfg.StateStore.Dir)
	}
	if cfg.Observability.LogMaxSizeMB != 10 || cfg.Observability.LogMaxBackups != 5 {
		t.Errorf("Expected 10MB/5 log rotation, got %d/%d",
			cfg.Observability.LogMaxSizeMB, cfg.Observability.LogMaxBackups)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("NVD_API_KEY", "feed-key")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200")
	t.Setenv("POLL_INTERVAL", "30m")
	t.Setenv("MAX_AGE_DAYS", "7")
	t.Setenv("VENDORS", "Cisco, Fortinet ,cisco")
	t.Setenv("NOTIFIER_TYPE", "Slack")
	t.Setenv("FETCH_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.APIKey != "feed-key" {
		t.Errorf("Expected feed key, got %q", cfg.Feed.APIKey)
	}
	if cfg.Notifier.TelegramBotToken != "123:abc" || cfg.Notifier.TelegramChatID != "-100200" {
		t.Errorf("Telegram credentials not loaded: %+v", cfg.Notifier)
	}
	if cfg.Watcher.PollInterval != 30*time.Minute {
		t.Errorf("Expected 30m poll interval, got %v", cfg.Watcher.PollInterval)
	}
	if cfg.Filter.MaxAgeDays != 7 {
		t.Errorf("Expected 7 day window, got %d", cfg.Filter.MaxAgeDays)
	}
	if want := []string{"Cisco", "Fortinet"}; !reflect.DeepEqual(cfg.Vendors, want) {
		t.Errorf("Expected vendors %v, got %v", want, cfg.Vendors)
	}
	if cfg.Notifier.Type != "slack" {
		t.Errorf("Expected notifier type to be lower-cased, got %s", cfg.Notifier.Type)
	}
	if cfg.Feed.Timeout != 5*time.Second || cfg.Advisory.Timeout != 5*time.Second {
		t.Errorf("Expected 5s fetch timeouts, got %v/%v", cfg.Feed.Timeout, cfg.Advisory.Timeout)
	}
}

func TestLoad_DefaultsFile(t *testing.T) {
	dir := isolate(t)
	writeDefaults(t, dir, `defaults:
  x-vendors:
    - VMware
    - Fortinet
    - ""
  x-poll-interval: 2h
  x-max-age-days: 10
  x-filter: severity == "CRITICAL"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if want := []string{"VMware", "Fortinet"}; !reflect.DeepEqual(cfg.Vendors, want) {
		t.Errorf("Expected vendors %v, got %v", want, cfg.Vendors)
	}
	if cfg.Watcher.PollInterval != 2*time.Hour {
		t.Errorf("Expected 2h poll interval, got %v", cfg.Watcher.PollInterval)
	}
	if cfg.Filter.MaxAgeDays != 10 {
		t.Errorf("Expected 10 day window, got %d", cfg.Filter.MaxAgeDays)
	}
	if cfg.Filter.Expression != `severity == "CRITICAL"` {
		t.Errorf("Expected filter from defaults file, got %q", cfg.Filter.Expression)
	}
}

func TestLoad_EnvWinsOverDefaultsFile(t *testing.T) {
	dir := isolate(t)
	writeDefaults(t, dir, `defaults:
  x-vendors: [VMware]
  x-poll-interval: 2h
`)
	t.Setenv("POLL_INTERVAL", "1d")
	t.Setenv("VENDORS", "Sophos")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Watcher.PollInterval != 24*time.Hour {
		t.Errorf("Expected 24h poll interval, got %v", cfg.Watcher.PollInterval)
	}
	if !reflect.DeepEqual(cfg.Vendors, []string{"Sophos"}) {
		t.Errorf("Expected env vendors, got %v", cfg.Vendors)
	}
}

func TestLoad_InvalidDefaultsFile(t *testing.T) {
	dir := isolate(t)
	writeDefaults(t, dir, "defaults: [unterminated")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for malformed defaults file")
	}
	if !errors.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Vendors:    []string{"VMware"},
			Feed:       FeedConfig{BaseURL: "http://feed", ResultsPerPage: 10},
			Advisory:   AdvisoryConfig{PageURL: "http://page"},
			Notifier:   NotifierConfig{Type: "telegram"},
			Filter:     FilterConfig{MaxAgeDays: 15},
			Watcher:    WatcherConfig{PollInterval: time.Hour},
			StateStore: StateStoreConfig{Dir: "state"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no vendors", mutate: func(c *Config) { c.Vendors = nil }, wantErr: "vendor"},
		{name: "zero interval", mutate: func(c *Config) { c.Watcher.PollInterval = 0 }, wantErr: "poll interval"},
		{name: "zero window", mutate: func(c *Config) { c.Filter.MaxAgeDays = 0 }, wantErr: "MAX_AGE_DAYS"},
		{name: "no feed url", mutate: func(c *Config) { c.Feed.BaseURL = "" }, wantErr: "NVD_API_URL"},
		{name: "bad page size", mutate: func(c *Config) { c.Feed.ResultsPerPage = -1 }, wantErr: "NVD_RESULTS_PER_PAGE"},
		{name: "no advisory url", mutate: func(c *Config) { c.Advisory.PageURL = "" }, wantErr: "ADVISORY_URL"},
		{name: "unknown notifier", mutate: func(c *Config) { c.Notifier.Type = "email" }, wantErr: "notifier type"},
		{name: "no state dir", mutate: func(c *Config) { c.StateStore.Dir = "" }, wantErr: "STATE_DIR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	cfg := &Config{Notifier: NotifierConfig{Type: "telegram", TelegramBotToken: "t"}}
	got := cfg.MissingCredentials()
	want := []string{"NVD_API_KEY", "TELEGRAM_CHAT_ID"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingCredentials() = %v, want %v", got, want)
	}

	cfg = &Config{
		Feed:     FeedConfig{APIKey: "k"},
		Notifier: NotifierConfig{Type: "slack", SlackBotToken: "xoxb", SlackChannel: "#sec"},
	}
	if got := cfg.MissingCredentials(); len(got) != 0 {
		t.Errorf("expected no missing credentials, got %v", got)
	}
}

func TestLoad_EmptyLogDirMeansStdoutOnly(t *testing.T) {
	isolate(t)

	t.Setenv("LOG_DIR", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Observability.LogDir != "" {
		t.Errorf("LogDir = %q, want empty", cfg.Observability.LogDir)
	}

	os.Unsetenv("LOG_DIR")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Observability.LogDir != "logs" {
		t.Errorf("LogDir = %q, want logs", cfg.Observability.LogDir)
	}
}
