package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/five82/reeltrack/internal/api"
	"github.com/five82/reeltrack/internal/credentials"
	"github.com/five82/reeltrack/internal/retry"
)

// CredentialSource is read fresh for every request.
type CredentialSource interface {
	Credentials() credentials.Credentials
	InvalidateToken()
}

// Result settles a queued request.
type Result struct {
	Payload json.RawMessage
	Err     error
}

type queuedRequest struct {
	id         string
	desc       api.Descriptor
	done       chan Result
	enqueuedAt time.Time
}

// Options configure a Scheduler.
type Options struct {
	Sender      api.Sender
	Credentials CredentialSource
	Executor    *retry.Executor
	Policy      retry.Policy
	Spacing     time.Duration // delay between consecutive requests
	Logger      hclog.Logger

	// Sleep replaces the spacing wait, mostly for tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Scheduler serializes calls through a single FIFO queue and paces them.
// A drain goroutine runs only while the queue is non-empty.
type Scheduler struct {
	sender  api.Sender
	creds   CredentialSource
	exec    *retry.Executor
	policy  retry.Policy
	spacing time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	logger  hclog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	queue    []*queuedRequest
	draining bool
	closed   bool
	wg       sync.WaitGroup
}

// New builds a Scheduler. Close must be called to release it.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	exec := opts.Executor
	if exec == nil {
		exec = retry.NewExecutor(logger)
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sender:  opts.Sender,
		creds:   opts.Credentials,
		exec:    exec,
		policy:  opts.Policy,
		spacing: opts.Spacing,
		sleep:   sleep,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue appends desc to the queue and returns a channel that receives
// exactly one Result. Requests that can never be sent (invalid descriptor,
// missing client id, private call without a token) settle immediately
// without being queued.
func (s *Scheduler) Enqueue(desc api.Descriptor) <-chan Result {
	done := make(chan Result, 1)

	if err := s.precheck(desc); err != nil {
		done <- Result{Err: err}
		return done
	}

	req := &queuedRequest{
		id:         uuid.NewString(),
		desc:       desc,
		done:       done,
		enqueuedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- Result{Err: api.ErrClosed}
		return done
	}
	s.queue = append(s.queue, req)
	depth := len(s.queue)
	start := !s.draining
	if start {
		s.draining = true
		s.wg.Add(1)
	}
	s.mu.Unlock()

	s.logger.Trace("request queued", "id", req.id, "op", desc.Op, "path", desc.Path, "class", desc.Classification(), "depth", depth)
	if start {
		go s.drain()
	}
	return done
}

// Do enqueues desc and waits for its result. If ctx ends first Do returns
// ctx.Err(); the request itself stays queued and still runs.
func (s *Scheduler) Do(ctx context.Context, desc api.Descriptor) (json.RawMessage, error) {
	select {
	case res := <-s.Enqueue(desc):
		return res.Payload, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of requests waiting to be sent.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close aborts the in-flight request, rejects everything still queued and
// waits for the drain goroutine to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	s.cancel()
	for _, req := range pending {
		req.done <- Result{Err: api.ErrClosed}
	}
	s.wg.Wait()
}

func (s *Scheduler) drain() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.closed {
			s.draining = false
			s.mu.Unlock()
			return
		}
		req := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		sent := s.process(req)

		s.mu.Lock()
		more := len(s.queue) > 0 && !s.closed
		if !more {
			s.draining = false
		}
		s.mu.Unlock()
		if !more {
			return
		}
		if !sent {
			continue
		}
		if err := s.sleep(s.ctx, s.spacing); err != nil {
			// Closed while waiting; Close has already rejected the queue.
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
			return
		}
	}
}

// process settles req and reports whether it reached the network.
func (s *Scheduler) process(req *queuedRequest) bool {
	desc := req.desc
	waited := time.Since(req.enqueuedAt)

	// Credentials may have changed while the request was queued.
	auth, err := s.authFor(desc)
	if err != nil {
		s.logger.Debug("request rejected before send", "id", req.id, "op", desc.Op, "error", err)
		req.done <- Result{Err: err}
		return false
	}

	policy := s.policy
	if desc.RequiresAuth && s.creds != nil {
		policy.OnUnauthorized = s.creds.InvalidateToken
	}

	call := func(ctx context.Context) (*api.Response, error) {
		return s.sender.Send(ctx, desc, auth)
	}

	started := time.Now()
	payload, err := s.exec.Execute(s.ctx, desc.Path, call, policy)
	if err != nil && s.ctx.Err() != nil {
		err = api.ErrClosed
	}
	if err != nil {
		s.logger.Warn("request failed", "id", req.id, "op", desc.Op, "kind", api.KindOf(err), "error", err)
	} else {
		s.logger.Debug("request completed", "id", req.id, "op", desc.Op, "queued", waited, "took", time.Since(started))
	}
	req.done <- Result{Payload: payload, Err: err}
	return true
}

func (s *Scheduler) precheck(desc api.Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if s.sender == nil {
		return api.NewError(api.KindConfig, "no transport configured", nil)
	}
	_, err := s.authFor(desc)
	return err
}

func (s *Scheduler) authFor(desc api.Descriptor) (api.Auth, error) {
	var creds credentials.Credentials
	if s.creds != nil {
		creds = s.creds.Credentials()
	}
	if creds.ClientID == "" {
		return api.Auth{}, api.ErrMissingClientID
	}
	auth := api.Auth{ClientID: creds.ClientID}
	if desc.RequiresAuth {
		if !creds.HasToken(time.Now()) {
			return api.Auth{}, api.ErrMissingCredential
		}
		auth.AccessToken = creds.AccessToken
	}
	return auth, nil
}
