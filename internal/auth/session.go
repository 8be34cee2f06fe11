package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/five82/reeltrack/internal/api"
	"github.com/five82/reeltrack/internal/credentials"
	"github.com/five82/reeltrack/internal/retry"
)

// Status is the session state.
type Status int

const (
	StatusPending Status = iota
	StatusPolling
	StatusSucceeded
	StatusExpired
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPolling:
		return "polling"
	case StatusSucceeded:
		return "succeeded"
	case StatusExpired:
		return "expired"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Terminal reports whether no further transitions can leave s.
func (s Status) Terminal() bool {
	return s >= StatusSucceeded
}

// DeviceCode is what the user needs to authorize the device.
type DeviceCode struct {
	UserCode        string
	VerificationURL string
	ExpiresIn       time.Duration
	Interval        time.Duration

	deviceCode string
}

// Result is delivered exactly once when the session reaches a terminal state.
type Result struct {
	OK     bool
	Status Status
	Token  credentials.Token
	Err    error
}

// Presenter shows the code to the user. It must call Session.Cancel when the
// user dismisses it.
type Presenter interface {
	Present(code DeviceCode, cancel func())
	Done(Result)
}

// TokenStore receives the token on success.
type TokenStore interface {
	Credentials() credentials.Credentials
	SetToken(credentials.Token) error
}

// Invalidator drops cached private data when the identity changes.
type Invalidator interface {
	Invalidate()
}

// Options configure a Session.
type Options struct {
	Sender       api.Sender
	Tokens       TokenStore
	Cache        Invalidator
	Presenter    Presenter
	ClientSecret string
	Executor     *retry.Executor
	Policy       retry.Policy

	Backoff     BackoffMode
	MaxInterval time.Duration

	Logger       hclog.Logger
	OnTransition func(from, to Status)
	OnComplete   func(Result)

	// After replaces time.After for the poll timer.
	After func(d time.Duration) <-chan time.Time
	Now   func() time.Time
}

// Session runs one device-code authorization. A Session is single use: once
// it reaches a terminal state a new one must be created.
type Session struct {
	opts   Options
	logger hclog.Logger
	after  func(d time.Duration) <-chan time.Time
	now    func() time.Time

	mu          sync.Mutex
	status      Status
	code        DeviceCode
	attempts    int
	maxAttempts int
	deadline    time.Time
	result      Result
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewSession builds a session in the Pending state.
func NewSession(opts Options) (*Session, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("auth session requires a sender")
	}
	if opts.Tokens == nil {
		return nil, fmt.Errorf("auth session requires a token store")
	}
	if opts.Backoff == "" {
		opts.Backoff = BackoffFixed
	}
	if opts.Policy.MaxAttempts == 0 {
		opts.Policy = retry.DefaultPolicy()
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if opts.Executor == nil {
		opts.Executor = retry.NewExecutor(logger)
	}
	after := opts.After
	if after == nil {
		after = time.After
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		opts:   opts,
		logger: logger,
		after:  after,
		now:    now,
		status: StatusPending,
		done:   make(chan struct{}),
	}, nil
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Code returns the device code once Start has succeeded.
func (s *Session) Code() DeviceCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Done is closed once the session has reached a terminal state and every
// completion hook has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Start requests a device code, presents it and begins polling in the
// background. Cancelling ctx cancels the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.status.Terminal() {
		s.mu.Unlock()
		return fmt.Errorf("auth session already started")
	}
	s.started = true
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	creds := s.opts.Tokens.Credentials()
	if strings.TrimSpace(creds.ClientID) == "" {
		s.finish(StatusFailed, credentials.Token{}, api.ErrMissingClientID)
		return api.ErrMissingClientID
	}

	payload, err := s.opts.Executor.Execute(pollCtx, pathDeviceCode, s.call(api.Descriptor{
		Op:     "device_code",
		Method: http.MethodPost,
		Path:   pathDeviceCode,
		Body:   map[string]string{"client_id": creds.ClientID},
	}), s.opts.Policy)
	if err == nil {
		var code DeviceCode
		code, err = decodeDeviceCode(payload)
		if err == nil {
			return s.begin(pollCtx, code)
		}
	}
	if pollCtx.Err() != nil {
		s.finish(StatusCancelled, credentials.Token{}, nil)
		return context.Canceled
	}
	err = fmt.Errorf("request device code: %w", err)
	s.finish(StatusFailed, credentials.Token{}, err)
	return err
}

func (s *Session) begin(ctx context.Context, code DeviceCode) error {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	s.code = code
	s.attempts = 0
	s.maxAttempts = max(1, int(code.ExpiresIn/code.Interval))
	s.deadline = s.now().Add(code.ExpiresIn)
	s.status = StatusPolling
	s.mu.Unlock()

	s.notify(StatusPending, StatusPolling)
	s.logger.Info("device code issued", "url", code.VerificationURL, "expires_in", code.ExpiresIn, "interval", code.Interval)
	if s.opts.Presenter != nil {
		s.opts.Presenter.Present(code, s.Cancel)
	}
	go s.poll(ctx, code)
	return nil
}

// Cancel stops the session. It is safe to call at any time and from any
// goroutine; calls after a terminal state are no-ops.
func (s *Session) Cancel() {
	s.finish(StatusCancelled, credentials.Token{}, nil)
}

func (s *Session) poll(ctx context.Context, code DeviceCode) {
	pending := 0
	for {
		delay := code.Interval
		if s.opts.Backoff == BackoffExponential {
			delay = cappedBackoff(pending, code.Interval, s.opts.MaxInterval)
		}
		select {
		case <-ctx.Done():
			s.finish(StatusCancelled, credentials.Token{}, nil)
			return
		case <-s.after(delay):
		}
		if ctx.Err() != nil {
			s.finish(StatusCancelled, credentials.Token{}, nil)
			return
		}

		tok, outcome, err := s.exchange(ctx, code)
		if ctx.Err() != nil {
			s.finish(StatusCancelled, credentials.Token{}, nil)
			return
		}
		if outcome == outcomePending && err != nil {
			s.logger.Warn("token exchange failed, will poll again", "error", err)
		}
		switch outcome {
		case outcomeToken:
			s.succeed(tok)
			return
		case outcomeExpired:
			s.finish(StatusExpired, credentials.Token{}, fmt.Errorf("device code expired"))
			return
		case outcomeFailed:
			s.finish(StatusFailed, credentials.Token{}, err)
			return
		}

		pending++
		if !s.stillPolling() {
			return
		}
	}
}

// stillPolling records a pending poll and expires the session when the
// attempt budget or the code lifetime is used up.
func (s *Session) stillPolling() bool {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return false
	}
	s.attempts++
	exhausted := s.attempts >= s.maxAttempts || !s.now().Before(s.deadline)
	attempts := s.attempts
	s.mu.Unlock()

	if exhausted {
		s.finish(StatusExpired, credentials.Token{}, fmt.Errorf("authorization not granted after %d polls", attempts))
		return false
	}
	s.notify(StatusPolling, StatusPolling)
	s.logger.Debug("authorization pending", "attempt", attempts, "max", s.maxAttempts)
	return true
}

type outcome int

const (
	outcomePending outcome = iota
	outcomeToken
	outcomeExpired
	outcomeFailed
)

func (s *Session) exchange(ctx context.Context, code DeviceCode) (credentials.Token, outcome, error) {
	creds := s.opts.Tokens.Credentials()
	body := map[string]string{
		"code":          code.deviceCode,
		"client_id":     creds.ClientID,
		"client_secret": s.opts.ClientSecret,
	}
	policy := s.opts.Policy
	policy.MaxAttempts = 1
	payload, err := s.opts.Executor.Execute(ctx, pathDeviceToken, s.call(api.Descriptor{
		Op:     "device_token",
		Method: http.MethodPost,
		Path:   pathDeviceToken,
		Body:   body,
	}), policy)
	if err != nil {
		return credentials.Token{}, classifyExchange(err), err
	}
	resp, ok, err := decodeToken(payload)
	if err != nil {
		return credentials.Token{}, outcomeFailed, err
	}
	if !ok {
		return credentials.Token{}, outcomePending, nil
	}
	return resp.token(s.now()), outcomeToken, nil
}

// classifyExchange maps an exchange failure onto the poll outcome. 400 is
// the documented "pending" answer; 404 and 429 are treated the same way.
// Transient failures (network, timeout, 5xx) also count as a pending poll
// and use up one attempt.
func classifyExchange(err error) outcome {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return outcomeFailed
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests:
		return outcomePending
	case http.StatusGone:
		return outcomeExpired
	}
	if apiErr.Kind.Retryable() {
		return outcomePending
	}
	return outcomeFailed
}

// succeed writes the token, clears cached data and settles the result under
// one lock hold, so a racing Cancel either wins entirely or not at all.
func (s *Session) succeed(tok credentials.Token) {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	if err := s.opts.Tokens.SetToken(tok); err != nil {
		err = fmt.Errorf("store token: %w", err)
		from, result := s.settleLocked(StatusFailed, credentials.Token{}, err)
		s.mu.Unlock()
		s.complete(from, result)
		return
	}
	if s.opts.Cache != nil {
		s.opts.Cache.Invalidate()
	}
	from, result := s.settleLocked(StatusSucceeded, tok, nil)
	s.mu.Unlock()
	s.complete(from, result)
}

// finish moves to a terminal state. The first call wins.
func (s *Session) finish(to Status, tok credentials.Token, err error) {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	from, result := s.settleLocked(to, tok, err)
	s.mu.Unlock()
	s.complete(from, result)
}

// settleLocked records the terminal result and stops polling. The caller
// holds s.mu and has checked the status is not yet terminal.
func (s *Session) settleLocked(to Status, tok credentials.Token, err error) (Status, Result) {
	from := s.status
	s.status = to
	s.result = Result{OK: to == StatusSucceeded, Status: to, Token: tok, Err: err}
	if to == StatusCancelled && err == nil {
		s.result.Err = context.Canceled
	}
	if s.cancel != nil {
		s.cancel()
	}
	return from, s.result
}

// complete runs the hooks for a settled result, outside the lock, then
// releases Wait and Done.
func (s *Session) complete(from Status, result Result) {
	defer close(s.done)

	s.notify(from, result.Status)
	switch result.Status {
	case StatusSucceeded:
		s.logger.Info("device authorized")
	case StatusCancelled:
		s.logger.Info("authorization cancelled")
	default:
		s.logger.Warn("authorization ended", "status", result.Status, "error", result.Err)
	}
	if s.opts.Presenter != nil {
		s.opts.Presenter.Done(result)
	}
	if s.opts.OnComplete != nil {
		s.opts.OnComplete(result)
	}
}

func (s *Session) notify(from, to Status) {
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(from, to)
	}
}

func (s *Session) call(desc api.Descriptor) retry.Call {
	auth := api.Auth{ClientID: s.opts.Tokens.Credentials().ClientID}
	return func(ctx context.Context) (*api.Response, error) {
		return s.opts.Sender.Send(ctx, desc, auth)
	}
}
