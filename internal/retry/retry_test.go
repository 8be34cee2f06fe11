package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/reeltrack/internal/api"
)

type recorder struct {
	sleeps []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func scripted(responses ...*api.Response) (Call, *int) {
	calls := 0
	return func(context.Context) (*api.Response, error) {
		idx := calls
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		calls++
		return responses[idx], nil
	}, &calls
}

func status(code int, body string) *api.Response {
	return &api.Response{StatusCode: code, Body: []byte(body)}
}

func testPolicy() Policy {
	return Policy{
		Timeout:     time.Second,
		MaxAttempts: 3,
		BaseBackoff: 100 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestExecute_RetriesServerErrorsThenSucceeds(t *testing.T) {
	rec := &recorder{}
	exec := NewExecutor(nil, WithSleep(rec.sleep))

	attempts := 0
	call := func(ctx context.Context) (*api.Response, error) {
		attempts++
		if attempts < 3 {
			return status(http.StatusInternalServerError, ""), nil
		}
		return status(http.StatusOK, `{"attempt":3}`), nil
	}

	payload, err := exec.Execute(context.Background(), "/x", call, testPolicy())
	require.NoError(t, err)
	assert.JSONEq(t, `{"attempt":3}`, string(payload))
	assert.Equal(t, 3, attempts)
	require.Len(t, rec.sleeps, 2)
	assert.Less(t, rec.sleeps[0], rec.sleeps[1], "backoff must strictly increase")
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.sleeps)
}

func TestExecute_ClassifiedTransportErrorIsKept(t *testing.T) {
	rec := &recorder{}
	exec := NewExecutor(nil, WithSleep(rec.sleep))
	calls := 0
	call := func(context.Context) (*api.Response, error) {
		calls++
		return nil, &api.Error{Kind: api.KindProtocol, Status: http.StatusOK, Path: "/big", Msg: api.ErrResponseTooLarge.Msg}
	}

	_, err := exec.Execute(context.Background(), "/big", call, testPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrResponseTooLarge)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.sleeps)
}

func TestExecute_NotFoundIsTerminal(t *testing.T) {
	rec := &recorder{}
	exec := NewExecutor(nil, WithSleep(rec.sleep))
	call, calls := scripted(status(http.StatusNotFound, ""))

	_, err := exec.Execute(context.Background(), "/missing", call, testPolicy())
	require.Error(t, err)
	assert.Equal(t, api.KindNotFound, api.KindOf(err))
	assert.Equal(t, 1, *calls)
	assert.Empty(t, rec.sleeps)
}

func TestExecute_UnauthorizedFiresCallbackOnce(t *testing.T) {
	exec := NewExecutor(nil, WithSleep((&recorder{}).sleep))
	call, calls := scripted(status(http.StatusUnauthorized, ""))

	fired := 0
	policy := testPolicy()
	policy.OnUnauthorized = func() { fired++ }

	_, err := exec.Execute(context.Background(), "/sync", call, policy)
	assert.Equal(t, api.KindAuth, api.KindOf(err))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, *calls)
}

func TestExecute_RateLimitedExhaustsAttempts(t *testing.T) {
	rec := &recorder{}
	exec := NewExecutor(nil, WithSleep(rec.sleep))
	call, calls := scripted(status(http.StatusTooManyRequests, ""))

	_, err := exec.Execute(context.Background(), "/search", call, testPolicy())
	assert.Equal(t, api.KindRateLimited, api.KindOf(err))
	assert.Equal(t, 3, *calls)
	assert.Len(t, rec.sleeps, 2)
}

func TestExecute_RetryAfterRaisesDelayWithinCap(t *testing.T) {
	rec := &recorder{}
	exec := NewExecutor(nil, WithSleep(rec.sleep))
	limited := &api.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": {"2"}}}
	call, _ := scripted(limited, status(http.StatusOK, `[]`))

	policy := testPolicy()
	policy.MaxBackoff = 1500 * time.Millisecond
	_, err := exec.Execute(context.Background(), "/search", call, policy)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, rec.sleeps)
}

func TestExecute_NetworkErrorRetried(t *testing.T) {
	rec := &recorder{}
	exec := NewExecutor(nil, WithSleep(rec.sleep))
	attempts := 0
	call := func(ctx context.Context) (*api.Response, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	_, err := exec.Execute(context.Background(), "/x", call, testPolicy())
	assert.Equal(t, api.KindNetwork, api.KindOf(err))
	assert.Equal(t, 3, attempts)
}

func TestExecute_AttemptTimeout(t *testing.T) {
	exec := NewExecutor(nil, WithSleep((&recorder{}).sleep))
	call := func(ctx context.Context) (*api.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	policy := testPolicy()
	policy.Timeout = 10 * time.Millisecond
	policy.MaxAttempts = 1
	_, err := exec.Execute(context.Background(), "/slow", call, policy)
	assert.Equal(t, api.KindTimeout, api.KindOf(err))
}

func TestExecute_MalformedBodyIsProtocolError(t *testing.T) {
	exec := NewExecutor(nil, WithSleep((&recorder{}).sleep))
	call, calls := scripted(status(http.StatusOK, `{not-json`))

	_, err := exec.Execute(context.Background(), "/x", call, testPolicy())
	assert.Equal(t, api.KindProtocol, api.KindOf(err))
	assert.Equal(t, 1, *calls)
}

func TestExecute_EmptyBodyIsNull(t *testing.T) {
	exec := NewExecutor(nil)
	call, _ := scripted(status(http.StatusNoContent, ""))

	payload, err := exec.Execute(context.Background(), "/x", call, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, "null", string(payload))
}

func TestExecute_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := NewExecutor(nil)
	call := func(context.Context) (*api.Response, error) {
		cancel()
		return status(http.StatusServiceUnavailable, ""), nil
	}

	_, err := exec.Execute(ctx, "/x", call, testPolicy())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyBackoff(t *testing.T) {
	p := Policy{BaseBackoff: time.Second, Multiplier: 2, MaxBackoff: 5 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{40, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
