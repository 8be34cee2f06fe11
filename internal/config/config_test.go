package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BaseURL != defaultBaseURL {
		t.Fatalf("BaseURL = %q, want %q", cfg.BaseURL, defaultBaseURL)
	}
	want := filepath.Join(home, ".config/reeltrack/credentials.toml")
	if cfg.CredentialsPath != want {
		t.Fatalf("CredentialsPath = %q, want %q", cfg.CredentialsPath, want)
	}
	if cfg.Requests.MaxAttempts != 3 || cfg.Requests.Spacing != 350*time.Millisecond {
		t.Fatalf("Requests = %+v, want defaults", cfg.Requests)
	}
	if cfg.Cache.DedupeInflight {
		t.Fatalf("DedupeInflight should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
base_url = "  http://localhost:8080  "
client_id = "  abc  "
client_secret = "shh"
credentials_path = "  ~/.reeltrack/creds.toml  "
log_level = "DEBUG"
log_file = "~/reeltrack.log"
theme = "Kanagawa"

[requests]
timeout_ms = 2500
max_attempts = 5
base_backoff_ms = 100
backoff_multiplier = 1.5
max_backoff_ms = 4000
spacing_ms = 0

[cache]
search_ttl_ms = 1000
item_ttl_ms = 2000
list_ttl_ms = 3000
stats_ttl_ms = 4000
sync_ttl_ms = 5000
sweep_interval_ms = 6000
max_entries = 128
dedupe_inflight = true

[auth]
poll_backoff = "Exponential"
max_poll_interval_ms = 20000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080" || cfg.ClientID != "abc" || cfg.ClientSecret != "shh" {
		t.Fatalf("strings not trimmed: %+v", cfg)
	}
	if !strings.HasPrefix(cfg.CredentialsPath, home) || !strings.HasPrefix(cfg.LogFile, home) {
		t.Fatalf("paths not expanded under HOME %q: %q, %q", home, cfg.CredentialsPath, cfg.LogFile)
	}
	if cfg.LogLevel != "debug" || cfg.Theme != "Kanagawa" {
		t.Fatalf("LogLevel = %q, Theme = %q", cfg.LogLevel, cfg.Theme)
	}

	wantReq := Requests{
		Timeout:           2500 * time.Millisecond,
		MaxAttempts:       5,
		BaseBackoff:       100 * time.Millisecond,
		BackoffMultiplier: 1.5,
		MaxBackoff:        4 * time.Second,
		Spacing:           0,
	}
	if cfg.Requests != wantReq {
		t.Fatalf("Requests = %+v, want %+v", cfg.Requests, wantReq)
	}

	wantCache := Cache{
		SearchTTL:      time.Second,
		ItemTTL:        2 * time.Second,
		ListTTL:        3 * time.Second,
		StatsTTL:       4 * time.Second,
		SyncTTL:        5 * time.Second,
		SweepInterval:  6 * time.Second,
		MaxEntries:     128,
		DedupeInflight: true,
	}
	if cfg.Cache != wantCache {
		t.Fatalf("Cache = %+v, want %+v", cfg.Cache, wantCache)
	}
	if cfg.Auth.PollBackoff != "exponential" || cfg.Auth.MaxPollInterval != 20*time.Second {
		t.Fatalf("Auth = %+v", cfg.Auth)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
base_url = "   "
log_level = ""
[requests]
max_attempts = 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	def := Default()
	if cfg.BaseURL != def.BaseURL || cfg.LogLevel != def.LogLevel || cfg.Requests != def.Requests {
		t.Fatalf("Load = %+v, want defaults %+v", cfg, def)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := writeConfig(t, `base_url = [`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad url", `base_url = "ftp://example.com"`, "base_url"},
		{"bad level", `log_level = "loud"`, "log_level"},
		{"too many attempts", "[requests]\nmax_attempts = 50", "max_attempts"},
		{"shrinking backoff", "[requests]\nbackoff_multiplier = 0.5", "backoff_multiplier"},
		{"negative spacing", "[requests]\nspacing_ms = -1", "negative"},
		{"max below base", "[requests]\nbase_backoff_ms = 5000\nmax_backoff_ms = 1000", "max_backoff_ms"},
		{"negative ttl", "[cache]\nstats_ttl_ms = -5", "stats_ttl_ms"},
		{"negative bound", "[cache]\nmax_entries = -1", "max_entries"},
		{"bad poll backoff", "[auth]\npoll_backoff = \"linear\"", "poll_backoff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("Load returned nil error, want validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestDefaultPath_UnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := DefaultPath()
	if !strings.HasPrefix(got, home) || !strings.HasSuffix(got, filepath.FromSlash("/reeltrack/config.toml")) {
		t.Fatalf("DefaultPath = %q, want it under HOME %q", got, home)
	}
}
