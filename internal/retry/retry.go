// Package retry executes a single network call with a per-attempt timeout,
// classifies the outcome and retries transient failures with exponential
// backoff.
package retry

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/five82/reeltrack/internal/api"
)

// Call performs one attempt. Non-2xx statuses come back as a Response.
type Call func(ctx context.Context) (*api.Response, error)

// Policy defines retry behavior for one call.
type Policy struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	Multiplier  float64
	MaxBackoff  time.Duration // zero means uncapped

	// OnUnauthorized is invoked once when the call receives a 401, before the
	// error is returned.
	OnUnauthorized func()
}

// DefaultPolicy returns the policy used when configuration leaves it unset.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:     10 * time.Second,
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
}

// Backoff returns the delay before the attempt following attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.BaseBackoff) * math.Pow(mult, float64(attempt-1))
	if p.MaxBackoff > 0 && delay > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the context-aware sleep, mostly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// Executor runs calls under a Policy. It holds no per-call state and is safe
// for concurrent use.
type Executor struct {
	sleep  func(ctx context.Context, d time.Duration) error
	logger hclog.Logger
}

// NewExecutor builds an Executor. A nil logger discards output.
func NewExecutor(logger hclog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	e := &Executor{sleep: Sleep, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs call until it succeeds, fails terminally or exhausts
// policy.MaxAttempts. name labels logs and errors. A cancelled ctx stops the
// loop and returns ctx.Err().
func (e *Executor) Execute(ctx context.Context, name string, call Call, policy Policy) (json.RawMessage, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		payload, retryAfter, callErr := e.attempt(ctx, name, call, policy.Timeout)
		if callErr == nil {
			return payload, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if callErr.Kind == api.KindAuth && policy.OnUnauthorized != nil {
			policy.OnUnauthorized()
		}
		if !callErr.Kind.Retryable() || attempt >= maxAttempts {
			if attempt > 1 {
				e.logger.Debug("giving up", "call", name, "attempts", attempt, "error", callErr)
			}
			return nil, callErr
		}

		delay := policy.Backoff(attempt)
		if retryAfter > delay {
			delay = retryAfter
			if policy.MaxBackoff > 0 && delay > policy.MaxBackoff {
				delay = policy.MaxBackoff
			}
		}
		e.logger.Debug("retrying request", "call", name, "attempt", attempt, "delay", delay, "error", callErr)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (e *Executor) attempt(ctx context.Context, name string, call Call, timeout time.Duration) (json.RawMessage, time.Duration, *api.Error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := call(attemptCtx)
	if err != nil {
		var classified *api.Error
		if errors.As(err, &classified) {
			return nil, 0, classified
		}
		if isTimeout(attemptCtx, err) {
			return nil, 0, &api.Error{Kind: api.KindTimeout, Path: name, Msg: "request timed out", Err: err}
		}
		return nil, 0, &api.Error{Kind: api.KindNetwork, Path: name, Msg: "request failed", Err: err}
	}
	if resp == nil {
		return nil, 0, &api.Error{Kind: api.KindProtocol, Path: name, Msg: "empty response"}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body := strings.TrimSpace(string(resp.Body))
		if body == "" {
			return json.RawMessage("null"), 0, nil
		}
		if !json.Valid([]byte(body)) {
			return nil, 0, &api.Error{Kind: api.KindProtocol, Status: resp.StatusCode, Path: name, Msg: "decode response"}
		}
		return json.RawMessage(body), 0, nil
	}

	var retryAfter time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter = parseRetryAfter(resp.Header)
	}
	return nil, retryAfter, api.StatusError(resp.StatusCode, name)
}

func isTimeout(attemptCtx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func parseRetryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
