package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	apperrors "github.com/jrsteele09/pcexpress-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	maxDrainBytes     = 64 << 10
)

type attemptKey struct{}

// AttemptFromContext returns the zero-based attempt number of the request
// currently in flight.
func AttemptFromContext(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}

// RetryPolicy bounds how a failed request is retried.
type RetryPolicy struct {
	MaxRetries int
	// BaseDelay is scaled by 2^n before retry n, so 1s gives 2s, 4s, 8s.
	BaseDelay time.Duration
	// RetryIf classifies a finished attempt. Defaults to ShouldRetry.
	RetryIf func(resp *http.Response, err error) bool
	// Sleep waits between attempts. Defaults to a timer on Clock.
	Sleep   func(ctx context.Context, d time.Duration) error
	Clock   clockwork.Clock
	Metrics *Metrics
	Logger  *zerolog.Logger
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// Delay is the wait before retry n (n >= 1).
func (p RetryPolicy) Delay(n int) time.Duration {
	return p.BaseDelay * time.Duration(1<<uint(n))
}

// ShouldRetry retries transient failures: transport errors (including
// timeouts), 408, 429 and 5xx. A 401 is owned by SessionGuard and is never
// retried; retrying a known-bad token cannot succeed. Other 4xx responses
// are deterministic and are returned as they are, even though the request
// failed: replaying a 400, 403, 404 or 422 gives the same answer and only
// delays the message the caller shows. Cancellation by the caller is never
// retried.
func ShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		return false
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	default:
		return code >= 500
	}
}

// Retry re-issues failed requests according to policy. Each request owns its
// own attempt counter; nothing is shared between concurrent requests.
func Retry(policy RetryPolicy) Middleware {
	if policy.RetryIf == nil {
		policy.RetryIf = ShouldRetry
	}
	if policy.Clock == nil {
		policy.Clock = clockwork.NewRealClock()
	}
	if policy.Sleep == nil {
		policy.Sleep = clockSleep(policy.Clock)
	}
	logger := log.Logger
	if policy.Logger != nil {
		logger = *policy.Logger
	}
	logger = logger.With().Str("component", "pipeline").Logger()

	return func(next http.RoundTripper) http.RoundTripper {
		r := &retrier{policy: policy, next: next, logger: logger}
		return RoundTripperFunc(r.roundTrip)
	}
}

type retrier struct {
	policy RetryPolicy
	next   http.RoundTripper
	logger zerolog.Logger
}

func (r *retrier) roundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for n := 0; ; n++ {
		resp, err := r.attempt(req, n)

		if !r.policy.RetryIf(resp, err) || !rewindable(req) || ctx.Err() != nil {
			return resp, err
		}
		if n >= r.policy.MaxRetries {
			if err != nil {
				return nil, fmt.Errorf("%w after %d attempts: %w", apperrors.ErrRetriesExhausted, n+1, err)
			}
			return resp, nil
		}

		delay := r.policy.Delay(n + 1)
		r.logger.Warn().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("attempt", n+1).
			Dur("backoff", delay).
			Err(failure(resp, err)).
			Msg("request failed, retrying")

		if serr := r.policy.Sleep(ctx, delay); serr != nil {
			return resp, err
		}
		drain(resp)
		r.policy.Metrics.retried(req.Method)
	}
}

// attempt issues attempt n (0 is the original request).
func (r *retrier) attempt(req *http.Request, n int) (*http.Response, error) {
	out := req.WithContext(context.WithValue(req.Context(), attemptKey{}, n))
	if n > 0 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		out = out.Clone(out.Context())
		out.Body = body
	}
	return r.next.RoundTrip(out)
}

func rewindable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	_ = resp.Body.Close()
}

func failure(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("status %d", resp.StatusCode)
}

func clockSleep(clock clockwork.Clock) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		t := clock.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			return nil
		}
	}
}
