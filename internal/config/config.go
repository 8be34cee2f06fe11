package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	toml "github.com/pelletier/go-toml/v2"
)

// Config is the validated reeltrack configuration.
type Config struct {
	BaseURL         string
	ClientID        string
	ClientSecret    string
	CredentialsPath string
	LogLevel        string
	LogFile         string
	Theme           string

	Requests Requests
	Cache    Cache
	Auth     Auth
}

// Requests tunes the scheduler and retry policy.
type Requests struct {
	Timeout           time.Duration
	MaxAttempts       int
	BaseBackoff       time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
	Spacing           time.Duration
}

// Cache tunes the response cache.
type Cache struct {
	SearchTTL      time.Duration
	ItemTTL        time.Duration
	ListTTL        time.Duration
	StatsTTL       time.Duration
	SyncTTL        time.Duration
	SweepInterval  time.Duration
	MaxEntries     int
	DedupeInflight bool
}

// Auth tunes the device-code poll loop.
type Auth struct {
	PollBackoff     string
	MaxPollInterval time.Duration
}

const (
	defaultConfigPath      = "~/.config/reeltrack/config.toml"
	defaultCredentialsPath = "~/.config/reeltrack/credentials.toml"
	defaultBaseURL         = "https://api.trakt.tv"
	defaultLogLevel        = "warn"
	defaultTheme           = "Nightfox"
	defaultPollBackoff     = "fixed"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BaseURL:         defaultBaseURL,
		CredentialsPath: mustExpand(defaultCredentialsPath),
		LogLevel:        defaultLogLevel,
		Theme:           defaultTheme,
		Requests: Requests{
			Timeout:           10 * time.Second,
			MaxAttempts:       3,
			BaseBackoff:       500 * time.Millisecond,
			BackoffMultiplier: 2,
			MaxBackoff:        30 * time.Second,
			Spacing:           350 * time.Millisecond,
		},
		Cache: Cache{
			SearchTTL:     10 * time.Minute,
			ItemTTL:       time.Hour,
			ListTTL:       5 * time.Minute,
			StatsTTL:      15 * time.Minute,
			SyncTTL:       2 * time.Minute,
			SweepInterval: time.Minute,
		},
		Auth: Auth{
			PollBackoff:     defaultPollBackoff,
			MaxPollInterval: 30 * time.Second,
		},
	}
}

type rawConfig struct {
	BaseURL         string `toml:"base_url"`
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	CredentialsPath string `toml:"credentials_path"`
	LogLevel        string `toml:"log_level"`
	LogFile         string `toml:"log_file"`
	Theme           string `toml:"theme"`

	Requests struct {
		TimeoutMS         int64   `toml:"timeout_ms"`
		MaxAttempts       int     `toml:"max_attempts"`
		BaseBackoffMS     int64   `toml:"base_backoff_ms"`
		BackoffMultiplier float64 `toml:"backoff_multiplier"`
		MaxBackoffMS      int64   `toml:"max_backoff_ms"`
		SpacingMS         *int64  `toml:"spacing_ms"`
	} `toml:"requests"`

	Cache struct {
		SearchTTLMS     int64 `toml:"search_ttl_ms"`
		ItemTTLMS       int64 `toml:"item_ttl_ms"`
		ListTTLMS       int64 `toml:"list_ttl_ms"`
		StatsTTLMS      int64 `toml:"stats_ttl_ms"`
		SyncTTLMS       int64 `toml:"sync_ttl_ms"`
		SweepIntervalMS int64 `toml:"sweep_interval_ms"`
		MaxEntries      int   `toml:"max_entries"`
		DedupeInflight  bool  `toml:"dedupe_inflight"`
	} `toml:"cache"`

	Auth struct {
		PollBackoff       string `toml:"poll_backoff"`
		MaxPollIntervalMS int64  `toml:"max_poll_interval_ms"`
	} `toml:"auth"`
}

// Load reads the config file, applies defaults for anything missing and
// validates the result. A missing file yields the defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.apply(raw); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(raw rawConfig) error {
	setString(&c.BaseURL, raw.BaseURL)
	setString(&c.ClientID, raw.ClientID)
	setString(&c.ClientSecret, raw.ClientSecret)
	setString(&c.LogLevel, strings.ToLower(raw.LogLevel))
	setString(&c.Theme, raw.Theme)
	setString(&c.Auth.PollBackoff, strings.ToLower(raw.Auth.PollBackoff))

	if p := strings.TrimSpace(raw.CredentialsPath); p != "" {
		expanded, err := expandPath(p)
		if err != nil {
			return fmt.Errorf("credentials_path: %w", err)
		}
		c.CredentialsPath = expanded
	}
	if p := strings.TrimSpace(raw.LogFile); p != "" {
		expanded, err := expandPath(p)
		if err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
		c.LogFile = expanded
	}

	r := raw.Requests
	setMillis(&c.Requests.Timeout, r.TimeoutMS)
	setMillis(&c.Requests.BaseBackoff, r.BaseBackoffMS)
	setMillis(&c.Requests.MaxBackoff, r.MaxBackoffMS)
	if r.MaxAttempts != 0 {
		c.Requests.MaxAttempts = r.MaxAttempts
	}
	if r.BackoffMultiplier != 0 {
		c.Requests.BackoffMultiplier = r.BackoffMultiplier
	}
	if r.SpacingMS != nil {
		c.Requests.Spacing = time.Duration(*r.SpacingMS) * time.Millisecond
	}

	ca := raw.Cache
	setMillis(&c.Cache.SearchTTL, ca.SearchTTLMS)
	setMillis(&c.Cache.ItemTTL, ca.ItemTTLMS)
	setMillis(&c.Cache.ListTTL, ca.ListTTLMS)
	setMillis(&c.Cache.StatsTTL, ca.StatsTTLMS)
	setMillis(&c.Cache.SyncTTL, ca.SyncTTLMS)
	setMillis(&c.Cache.SweepInterval, ca.SweepIntervalMS)
	c.Cache.MaxEntries = ca.MaxEntries
	c.Cache.DedupeInflight = ca.DedupeInflight

	setMillis(&c.Auth.MaxPollInterval, raw.Auth.MaxPollIntervalMS)
	return nil
}

// Validate checks every field once so components can trust their inputs.
func (c Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q must be an http(s) URL", c.BaseURL))
	}
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("log_level %q is not a known level", c.LogLevel))
	}
	if c.Requests.MaxAttempts < 1 || c.Requests.MaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("requests.max_attempts must be between 1 and 10, got %d", c.Requests.MaxAttempts))
	}
	if c.Requests.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("requests.backoff_multiplier must be at least 1, got %v", c.Requests.BackoffMultiplier))
	}
	if c.Requests.Timeout < 0 || c.Requests.BaseBackoff < 0 || c.Requests.MaxBackoff < 0 || c.Requests.Spacing < 0 {
		errs = append(errs, errors.New("requests durations must not be negative"))
	}
	if c.Requests.MaxBackoff > 0 && c.Requests.MaxBackoff < c.Requests.BaseBackoff {
		errs = append(errs, errors.New("requests.max_backoff_ms must not be below base_backoff_ms"))
	}
	for name, ttl := range map[string]time.Duration{
		"search_ttl_ms":     c.Cache.SearchTTL,
		"item_ttl_ms":       c.Cache.ItemTTL,
		"list_ttl_ms":       c.Cache.ListTTL,
		"stats_ttl_ms":      c.Cache.StatsTTL,
		"sync_ttl_ms":       c.Cache.SyncTTL,
		"sweep_interval_ms": c.Cache.SweepInterval,
	} {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("cache.%s must be positive", name))
		}
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries must not be negative"))
	}
	switch c.Auth.PollBackoff {
	case "fixed", "exponential":
	default:
		errs = append(errs, fmt.Errorf("auth.poll_backoff %q must be fixed or exponential", c.Auth.PollBackoff))
	}
	if c.Auth.MaxPollInterval <= 0 {
		errs = append(errs, errors.New("auth.max_poll_interval_ms must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DefaultPath returns the expanded default config location.
func DefaultPath() string {
	return mustExpand(defaultConfigPath)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setMillis(dst *time.Duration, ms int64) {
	if ms != 0 {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
