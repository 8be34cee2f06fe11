package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, serverURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	body := `
base_url = "` + serverURL + `"
client_id = "cid"
credentials_path = "` + filepath.Join(dir, "creds.toml") + `"

[requests]
max_attempts = 1
spacing_ms = 0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "tron legacy", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"type":"movie","score":10,"movie":{"title":"TRON: Legacy","year":2010,"ids":{"trakt":12601,"slug":"tron-legacy-2010"}}}]`))
	}))
	t.Cleanup(server.Close)

	cfg := writeConfig(t, server.URL)
	out, err := execute(t, "--config", cfg, "search", "--type", "movie", "-n", "5", "tron", "legacy")
	require.NoError(t, err)
	assert.Contains(t, out, "TRON: Legacy (2010)")
	assert.Contains(t, out, "tron-legacy-2010")
}

func TestSearchCommand_InvalidTypeSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(server.Close)

	cfg := writeConfig(t, server.URL)
	_, err := execute(t, "--config", cfg, "search", "--type", "song", "tron")
	require.Error(t, err)
	assert.Equal(t, int32(0), hits.Load())
}

func TestStatsCommand_JSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/sean/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"movies":{"plays":3,"minutes":360}}`))
	}))
	t.Cleanup(server.Close)

	cfg := writeConfig(t, server.URL)
	out, err := execute(t, "--config", cfg, "--json", "stats", "sean")
	require.NoError(t, err)
	assert.JSONEq(t, `{"movies":{"plays":3,"minutes":360}}`, out)
}

func TestSyncCommand_RequiresLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	t.Cleanup(server.Close)

	cfg := writeConfig(t, server.URL)
	_, err := execute(t, "--config", cfg, "sync", "watchlist")
	require.Error(t, err)
}

func TestWhoamiCommand(t *testing.T) {
	cfg := writeConfig(t, "https://api.example.test")
	out, err := execute(t, "--config", cfg, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "client id:  yes")
	assert.Contains(t, out, "signed in:  no")
	assert.NotContains(t, out, "expires:")
}

func TestItemCommand_ArgCount(t *testing.T) {
	cfg := writeConfig(t, "https://api.example.test")
	_, err := execute(t, "--config", cfg, "item", "movie")
	require.Error(t, err)
}
