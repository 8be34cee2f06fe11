package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_MissingFileIsEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	if s.Path() != filepath.Join(home, ".config", "reeltrack", "credentials.toml") {
		t.Fatalf("Path = %q, want default under HOME", s.Path())
	}
	c, err := s.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c != (Credentials{}) {
		t.Fatalf("Load = %#v, want empty", c)
	}
}

func TestStore_SaveCreatesFileAndDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "credentials.toml")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	want := Credentials{ClientID: "cid", AccessToken: "tok", RefreshToken: "ref", TokenExpiry: expiry}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got.ClientID != "cid" || got.AccessToken != "tok" || got.RefreshToken != "ref" || !got.TokenExpiry.Equal(expiry) {
		t.Fatalf("Load = %#v, want %#v", got, want)
	}
}

func TestStore_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")
	if err := os.WriteFile(path, []byte("not valid toml {{{\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	if _, err := s.Load(); err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
}

func TestCredentials_HasToken(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		creds Credentials
		want  bool
	}{
		{"empty", Credentials{}, false},
		{"blank", Credentials{AccessToken: "  "}, false},
		{"no expiry", Credentials{AccessToken: "t"}, true},
		{"future expiry", Credentials{AccessToken: "t", TokenExpiry: now.Add(time.Hour)}, true},
		{"past expiry", Credentials{AccessToken: "t", TokenExpiry: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.creds.HasToken(now); got != tt.want {
				t.Errorf("HasToken = %v, want %v", got, tt.want)
			}
		})
	}
}

type memoryStore struct {
	creds   Credentials
	saves   int
	saveErr error
}

func (m *memoryStore) Load() (Credentials, error) { return m.creds, nil }

func (m *memoryStore) Save(c Credentials) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.creds = c
	return nil
}

func TestProvider_FallbackClientID(t *testing.T) {
	p, err := NewProvider(&memoryStore{}, " cfg-id ", nil)
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	if p.ClientID() != "cfg-id" {
		t.Fatalf("ClientID = %q, want cfg-id", p.ClientID())
	}

	p, err = NewProvider(&memoryStore{creds: Credentials{ClientID: "file-id"}}, "cfg-id", nil)
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	if p.ClientID() != "file-id" {
		t.Fatalf("ClientID = %q, want file-id", p.ClientID())
	}
}

func TestProvider_SetTokenWritesThrough(t *testing.T) {
	store := &memoryStore{}
	p, err := NewProvider(store, "cid", nil)
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	if p.HasToken() {
		t.Fatalf("HasToken = true before SetToken")
	}
	if err := p.SetToken(Token{AccessToken: "tok", RefreshToken: "ref"}); err != nil {
		t.Fatalf("SetToken returned error: %v", err)
	}
	if !p.HasToken() {
		t.Fatalf("HasToken = false after SetToken")
	}
	if store.saves != 1 || store.creds.AccessToken != "tok" {
		t.Fatalf("store = %#v saves=%d, want token persisted once", store.creds, store.saves)
	}
	if err := p.SetToken(Token{}); err == nil {
		t.Fatalf("SetToken with empty token returned nil error")
	}
}

func TestProvider_InvalidateKeepsRefreshToken(t *testing.T) {
	store := &memoryStore{creds: Credentials{ClientID: "cid", AccessToken: "tok", RefreshToken: "ref"}}
	p, err := NewProvider(store, "", nil)
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	p.InvalidateToken()

	c := p.Credentials()
	if c.AccessToken != "" || c.RefreshToken != "ref" || c.ClientID != "cid" {
		t.Fatalf("Credentials = %#v, want access token purged only", c)
	}
	if store.creds.AccessToken != "" {
		t.Fatalf("invalidation not persisted")
	}
}

func TestProvider_InvalidateSurvivesSaveFailure(t *testing.T) {
	store := &memoryStore{creds: Credentials{AccessToken: "tok"}, saveErr: errors.New("disk full")}
	p, err := NewProvider(store, "cid", nil)
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	p.InvalidateToken()
	if p.HasToken() {
		t.Fatalf("HasToken = true, want in-memory purge even when save fails")
	}
}

func TestProvider_SignOut(t *testing.T) {
	store := &memoryStore{creds: Credentials{ClientID: "cid", AccessToken: "tok", RefreshToken: "ref", TokenExpiry: time.Now().Add(time.Hour)}}
	p, err := NewProvider(store, "", nil)
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	if err := p.SignOut(); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	if store.creds != (Credentials{ClientID: "cid"}) {
		t.Fatalf("store = %#v, want only client id left", store.creds)
	}
}
