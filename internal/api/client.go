package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Sender performs one HTTP exchange for a descriptor. It is implemented by
// *Client and replaced by stubs in tests.
type Sender interface {
	Send(ctx context.Context, desc Descriptor, auth Auth) (*Response, error)
}

// Ensure Client implements Sender at compile time.
var _ Sender = (*Client)(nil)

// Response is the raw result of one HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client talks to the media-tracking HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	maxBody   int64
}

const (
	DefaultBaseURL   = "https://api.trakt.tv"
	defaultUserAgent = "reeltrack/0.1"
	apiVersion       = "2"
	maxResponseBytes = 32 << 20
)

// NewClient builds a Client for baseURL. Timeouts are applied per attempt by
// the retry executor through the request context.
func NewClient(baseURL string) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		maxBody:   maxResponseBytes,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Send executes desc. Non-2xx statuses are returned as a Response, not an
// error; only transport-level failures produce an error.
func (c *Client) Send(ctx context.Context, desc Descriptor, auth Auth) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: desc.Path}
	if len(desc.Query) > 0 {
		rel.RawQuery = desc.Query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if desc.Body != nil {
		payload, err := json.Marshal(desc.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("trakt-api-version", apiVersion)
	if auth.ClientID != "" {
		req.Header.Set("trakt-api-key", auth.ClientID)
	}
	if desc.RequiresAuth && auth.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > c.maxBody {
		return nil, &Error{
			Kind:   KindProtocol,
			Status: resp.StatusCode,
			Path:   desc.Path,
			Msg:    ErrResponseTooLarge.Msg,
			Err:    fmt.Errorf("body exceeds %d bytes", c.maxBody),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse base url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
