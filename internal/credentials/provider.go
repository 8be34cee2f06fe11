package credentials

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Persister is the settings storage the provider writes through.
type Persister interface {
	Load() (Credentials, error)
	Save(Credentials) error
}

// Ensure Store implements Persister at compile time.
var _ Persister = (*Store)(nil)

// Token is the result of a successful authentication or refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Provider is the single source of truth for auth state. Callers read it
// fresh on every request because sign-out, refresh or a PIN exchange may
// change it mid-session.
type Provider struct {
	mu       sync.RWMutex
	creds    Credentials
	fallback string
	store    Persister
	now      func() time.Time
	logger   hclog.Logger
}

// NewProvider loads the persisted credentials. fallbackClientID is used when
// the settings file has no client id of its own.
func NewProvider(store Persister, fallbackClientID string, logger hclog.Logger) (*Provider, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	p := &Provider{
		fallback: strings.TrimSpace(fallbackClientID),
		store:    store,
		now:      time.Now,
		logger:   logger,
	}
	if store != nil {
		creds, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("load credentials: %w", err)
		}
		p.creds = creds
	}
	return p, nil
}

// Credentials returns a snapshot with the effective client id filled in.
func (p *Provider) Credentials() Credentials {
	p.mu.RLock()
	defer p.mu.RUnlock()

	c := p.creds
	if c.ClientID == "" {
		c.ClientID = p.fallback
	}
	return c
}

// ClientID returns the effective client id.
func (p *Provider) ClientID() string {
	return p.Credentials().ClientID
}

// HasToken reports whether a usable access token is configured.
func (p *Provider) HasToken() bool {
	return p.Credentials().HasToken(p.now())
}

// SetToken writes a new token through to storage.
func (p *Provider) SetToken(t Token) error {
	if strings.TrimSpace(t.AccessToken) == "" {
		return fmt.Errorf("set token: access token is empty")
	}
	return p.update(func(c *Credentials) {
		c.AccessToken = t.AccessToken
		c.RefreshToken = t.RefreshToken
		c.TokenExpiry = t.ExpiresAt
	})
}

// InvalidateToken purges the access token after the API rejected it. The
// refresh token is kept so the session can still be renewed.
func (p *Provider) InvalidateToken() {
	err := p.update(func(c *Credentials) {
		c.AccessToken = ""
		c.TokenExpiry = time.Time{}
	})
	if err != nil {
		p.logger.Warn("persist invalidated token failed", "error", err)
		return
	}
	p.logger.Info("access token invalidated")
}

// SignOut clears every token field and persists the result.
func (p *Provider) SignOut() error {
	return p.update(func(c *Credentials) {
		c.AccessToken = ""
		c.RefreshToken = ""
		c.TokenExpiry = time.Time{}
	})
}

// update applies fn in memory and persists. The in-memory state changes even
// when persistence fails so an invalid token is never reused this session.
func (p *Provider) update(fn func(*Credentials)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.creds)
	if p.store == nil {
		return nil
	}
	if err := p.store.Save(p.creds); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}
