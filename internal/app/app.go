package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/five82/reeltrack/internal/api"
	"github.com/five82/reeltrack/internal/auth"
	"github.com/five82/reeltrack/internal/cache"
	"github.com/five82/reeltrack/internal/config"
	"github.com/five82/reeltrack/internal/credentials"
	"github.com/five82/reeltrack/internal/gateway"
	"github.com/five82/reeltrack/internal/retry"
	"github.com/five82/reeltrack/internal/scheduler"
)

// Options configure Open.
type Options struct {
	ConfigPath string
	LogLevel   string    // overrides the configured level when set
	Stderr     io.Writer // log destination when no log file is configured

	// Sender replaces the HTTP client, mostly for tests.
	Sender api.Sender
}

// Session owns one scheduler, one cache and the credential provider for the
// lifetime of a host session. Close releases all of them.
type Session struct {
	cfg       config.Config
	logger    hclog.Logger
	logCloser io.Closer

	sender   api.Sender
	exec     *retry.Executor
	policy   retry.Policy
	provider *credentials.Provider
	cache    *cache.TTLCache
	sched    *scheduler.Scheduler
	gateway  *gateway.Gateway

	stopSweep context.CancelFunc
	sweepDone <-chan struct{}
}

// Open loads configuration and wires every component.
func Open(opts Options) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return OpenConfig(cfg, opts)
}

// OpenConfig wires a session from an already validated config.
func OpenConfig(cfg config.Config, opts Options) (*Session, error) {
	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	logger, logCloser, err := newLogger(level, cfg.LogFile, stderr)
	if err != nil {
		return nil, err
	}

	sender := opts.Sender
	if sender == nil {
		client, err := api.NewClient(cfg.BaseURL)
		if err != nil {
			closeQuietly(logCloser)
			return nil, fmt.Errorf("init api client: %w", err)
		}
		sender = client
	}

	store, err := credentials.NewStore(cfg.CredentialsPath)
	if err != nil {
		closeQuietly(logCloser)
		return nil, fmt.Errorf("init credential store: %w", err)
	}
	provider, err := credentials.NewProvider(store, cfg.ClientID, logger.Named("credentials"))
	if err != nil {
		closeQuietly(logCloser)
		return nil, err
	}

	policy := retry.Policy{
		Timeout:     cfg.Requests.Timeout,
		MaxAttempts: cfg.Requests.MaxAttempts,
		BaseBackoff: cfg.Requests.BaseBackoff,
		Multiplier:  cfg.Requests.BackoffMultiplier,
		MaxBackoff:  cfg.Requests.MaxBackoff,
	}
	exec := retry.NewExecutor(logger.Named("retry"))

	cacheOpts := []cache.Option{}
	if cfg.Cache.MaxEntries > 0 {
		cacheOpts = append(cacheOpts, cache.WithMaxEntries(cfg.Cache.MaxEntries))
	}
	responses := cache.New(cacheOpts...)

	sched := scheduler.New(scheduler.Options{
		Sender:      sender,
		Credentials: provider,
		Executor:    exec,
		Policy:      policy,
		Spacing:     cfg.Requests.Spacing,
		Logger:      logger.Named("scheduler"),
	})

	gw, err := gateway.New(gateway.Options{
		Scheduler: sched,
		Cache:     responses,
		TTLs: gateway.TTLs{
			Search: cfg.Cache.SearchTTL,
			Item:   cfg.Cache.ItemTTL,
			List:   cfg.Cache.ListTTL,
			Stats:  cfg.Cache.StatsTTL,
			Sync:   cfg.Cache.SyncTTL,
		},
		Logger:         logger.Named("gateway"),
		DedupeInflight: cfg.Cache.DedupeInflight,
	})
	if err != nil {
		sched.Close()
		closeQuietly(logCloser)
		return nil, fmt.Errorf("init gateway: %w", err)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	s := &Session{
		cfg:       cfg,
		logger:    logger,
		logCloser: logCloser,
		sender:    sender,
		exec:      exec,
		policy:    policy,
		provider:  provider,
		cache:     responses,
		sched:     sched,
		gateway:   gw,
		stopSweep: stopSweep,
	}
	s.sweepDone = startSweeper(sweepCtx, responses, cfg.Cache.SweepInterval, logger.Named("cache"))
	logger.Debug("session opened", "base_url", cfg.BaseURL, "credentials", store.Path())
	return s, nil
}

// Close stops the sweeper, rejects queued requests and closes the log file.
func (s *Session) Close() error {
	s.stopSweep()
	<-s.sweepDone
	s.sched.Close()
	s.cache.Clear()
	s.logger.Debug("session closed")
	if s.logCloser != nil {
		return s.logCloser.Close()
	}
	return nil
}

// Gateway returns the lookup surface.
func (s *Session) Gateway() *gateway.Gateway { return s.gateway }

// Credentials returns the live credential provider.
func (s *Session) Credentials() *credentials.Provider { return s.provider }

// Config returns the loaded configuration.
func (s *Session) Config() config.Config { return s.cfg }

// Logger returns the root logger.
func (s *Session) Logger() hclog.Logger { return s.logger }

// AuthOptions returns session options for the device-code flow. Callers may
// set hooks on the result before building a session.
func (s *Session) AuthOptions(presenter auth.Presenter) auth.Options {
	backoff, _ := auth.ParseBackoffMode(s.cfg.Auth.PollBackoff)
	return auth.Options{
		Sender:       s.sender,
		Tokens:       s.provider,
		Cache:        s.gateway,
		Presenter:    presenter,
		ClientSecret: s.cfg.ClientSecret,
		Executor:     s.exec,
		Policy:       s.policy,
		Backoff:      backoff,
		MaxInterval:  s.cfg.Auth.MaxPollInterval,
		Logger:       s.logger.Named("auth"),
	}
}

// Login creates and starts a device-code session. The returned session is
// non-nil whenever it was created, even if Start failed.
func (s *Session) Login(ctx context.Context, presenter auth.Presenter) (*auth.Session, error) {
	session, err := auth.NewSession(s.AuthOptions(presenter))
	if err != nil {
		return nil, err
	}
	if err := session.Start(ctx); err != nil {
		return session, err
	}
	return session, nil
}

// Refresh renews the access token from the stored refresh token.
func (s *Session) Refresh(ctx context.Context) (credentials.Token, error) {
	return auth.Refresh(ctx, s.AuthOptions(nil))
}

// Logout revokes the token remotely when possible, then clears local
// credentials and every cached response.
func (s *Session) Logout(ctx context.Context) error {
	if err := auth.Revoke(ctx, s.AuthOptions(nil)); err != nil {
		s.logger.Warn("token revoke failed, signing out locally", "error", err)
	}
	if err := s.provider.SignOut(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.gateway.Invalidate()
	return nil
}

// Status summarizes local sign-in state.
type Status struct {
	ClientID    bool      `json:"client_id"`
	SignedIn    bool      `json:"signed_in"`
	Refreshable bool      `json:"refreshable"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Status reports local credential state without touching the network.
func (s *Session) Status() Status {
	c := s.provider.Credentials()
	return Status{
		ClientID:    c.ClientID != "",
		SignedIn:    s.provider.HasToken(),
		Refreshable: c.RefreshToken != "",
		ExpiresAt:   c.TokenExpiry,
	}
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
