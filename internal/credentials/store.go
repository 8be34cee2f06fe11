// Package credentials owns the live authentication state and its persistence.
// Credentials are stored in ~/.config/reeltrack/credentials.toml.
package credentials

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Credentials holds the client identity and the current bearer token.
type Credentials struct {
	ClientID     string    `toml:"client_id"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenExpiry  time.Time `toml:"token_expiry"`
}

// HasToken reports whether an access token is present and not expired at now.
func (c Credentials) HasToken(now time.Time) bool {
	if strings.TrimSpace(c.AccessToken) == "" {
		return false
	}
	return c.TokenExpiry.IsZero() || now.Before(c.TokenExpiry)
}

const defaultCredentialsPath = "~/.config/reeltrack/credentials.toml"

// DefaultPath returns the default credentials file path.
func DefaultPath() string {
	return defaultCredentialsPath
}

// Store reads and writes credentials to a TOML file.
type Store struct {
	path string
}

// NewStore resolves path (empty uses the default) and returns a Store.
func NewStore(path string) (*Store, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials path: %w", err)
	}
	return &Store{path: resolved}, nil
}

// Path returns the resolved file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads credentials. A missing file yields empty credentials.
func (s *Store) Load() (Credentials, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("open credentials: %w", err)
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := toml.Unmarshal(bytes, &creds); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	creds.ClientID = strings.TrimSpace(creds.ClientID)
	creds.AccessToken = strings.TrimSpace(creds.AccessToken)
	creds.RefreshToken = strings.TrimSpace(creds.RefreshToken)
	return creds, nil
}

// Save writes credentials, creating directories as needed. The file is only
// readable by the owner.
func (s *Store) Save(c Credentials) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	bytes, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, bytes, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultCredentialsPath)
	}
	return expandPath(path)
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
