package pipeline_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/pcexpress-session/internal/errors"
	"github.com/jrsteele09/pcexpress-session/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	token   string
	touches int
}

func (f *fakeStore) Token() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeStore) TouchActivity() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	return true
}

func (f *fakeStore) touchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touches
}

// sleepRecorder stands in for the backoff timer.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

type fixture struct {
	store    *fakeStore
	sleeper  *sleepRecorder
	logouts  atomic.Int32
	metrics  *pipeline.Metrics
	pipeline *pipeline.Pipeline
	client   *http.Client
}

func setup(t *testing.T, base http.RoundTripper) *fixture {
	t.Helper()

	metrics, err := pipeline.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	nop := zerolog.Nop()
	f := &fixture{
		store:   &fakeStore{token: "abc123"},
		sleeper: &sleepRecorder{},
		metrics: metrics,
	}
	policy := pipeline.DefaultRetryPolicy()
	policy.Sleep = f.sleeper.sleep
	policy.Metrics = metrics
	policy.Logger = &nop

	f.pipeline = pipeline.New(base,
		pipeline.Retry(policy),
		pipeline.SessionGuard(f.store, func(*http.Request) {
			f.logouts.Add(1)
			metrics.LoggedOut()
		}),
		pipeline.BearerAuth(f.store),
		pipeline.Instrument(metrics),
	)
	f.client = &http.Client{Transport: f.pipeline}
	return f
}

func TestBearerAuth(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	f := setup(t, srv.Client().Transport)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/products", nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, req.Header.Get("Authorization"), "caller's request must not be mutated")

	f.store.token = ""
	resp, err = f.client.Get(srv.URL + "/products")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, []string{"Bearer abc123", ""}, gotAuth)
}

func TestSessionGuard_SuccessTouchesActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := setup(t, srv.Client().Transport)

	resp, err := f.client.Get(srv.URL + "/ok")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 1, f.store.touchCount())

	resp, err = f.client.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, 1, f.store.touchCount())
	require.Zero(t, f.logouts.Load())
	require.Empty(t, f.sleeper.recorded(), "404 is not transient")
}

func TestUnauthorizedIsNotRetried(t *testing.T) {
	var attempts []int
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		attempts = append(attempts, pipeline.AttemptFromContext(req.Context()))
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody, Request: req}, nil
	})
	f := setup(t, base)

	resp, err := f.client.Get("http://api.test/products")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.Equal(t, []int{0}, attempts)
	require.EqualValues(t, 1, f.logouts.Load())
	require.Empty(t, f.sleeper.recorded())
	require.Zero(t, f.store.touchCount())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ForcedLogouts))
	require.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Retries.WithLabelValues(http.MethodGet)))
}

func TestBoundedRetry(t *testing.T) {
	var calls atomic.Int32
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: io.NopCloser(strings.NewReader("down")), Request: req}, nil
	})
	f := setup(t, base)

	resp, err := f.client.Get("http://api.test/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.EqualValues(t, 4, calls.Load())
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, f.sleeper.recorded())
	require.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Retries.WithLabelValues(http.MethodGet)))
	require.Equal(t, 4.0, testutil.ToFloat64(f.metrics.Attempts.WithLabelValues(http.MethodGet, "503")))
	require.Zero(t, f.logouts.Load())
}

func TestTimeoutsThenSuccess(t *testing.T) {
	var calls atomic.Int32
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if calls.Add(1) <= 3 {
			return nil, context.DeadlineExceeded
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`[]`)), Request: req}, nil
	})
	f := setup(t, base)

	resp, err := f.client.Get("http://api.test/products")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 4, calls.Load())
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, f.sleeper.recorded())
	require.Equal(t, 1, f.store.touchCount())
	require.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Attempts.WithLabelValues(http.MethodGet, "error")))
}

func TestTransportErrorsExhaustRetries(t *testing.T) {
	boom := errors.New("connection refused")
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		return nil, boom
	})
	f := setup(t, base)

	_, err := f.client.Get("http://api.test/products")
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrRetriesExhausted)
	require.ErrorIs(t, err, boom)
	require.Len(t, f.sleeper.recorded(), 3)
}

func TestRetryRewindsBody(t *testing.T) {
	var bodies []string
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(b))
		code := http.StatusInternalServerError
		if len(bodies) == 2 {
			code = http.StatusCreated
		}
		return &http.Response{StatusCode: code, Body: http.NoBody, Request: req}, nil
	})
	f := setup(t, base)

	resp, err := f.client.Post("http://api.test/purchase-orders", "application/json", strings.NewReader(`{"qty":3}`))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, []string{`{"qty":3}`, `{"qty":3}`}, bodies)
}

func TestUnrewindableBodyIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusBadGateway, Body: http.NoBody, Request: req}, nil
	})
	f := setup(t, base)

	req, err := http.NewRequest(http.MethodPost, "http://api.test/purchase-orders", io.NopCloser(strings.NewReader("x")))
	require.NoError(t, err)
	req.GetBody = nil

	resp, err := f.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.EqualValues(t, 1, calls.Load())
}

func TestCancelledBackoffStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{StatusCode: http.StatusInternalServerError, Body: http.NoBody, Request: req}, nil
	})

	policy := pipeline.DefaultRetryPolicy()
	policy.BaseDelay = time.Hour
	p := pipeline.New(base, pipeline.Retry(policy))

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://api.test/products", nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := p.RoundTrip(req)
		if assert.NoError(t, err) {
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		}
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("backoff sleep ignored cancellation")
	}
	require.EqualValues(t, 1, calls.Load())
}

func TestConcurrentRequestsHaveIndependentCounters(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]int{}
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		seen[req.URL.Path] = append(seen[req.URL.Path], pipeline.AttemptFromContext(req.Context()))
		n := len(seen[req.URL.Path])
		mu.Unlock()
		code := http.StatusInternalServerError
		if req.URL.Path == "/a" && n == 2 || req.URL.Path == "/b" && n == 4 {
			code = http.StatusOK
		}
		return &http.Response{StatusCode: code, Body: http.NoBody, Request: req}, nil
	})
	f := setup(t, base)

	var wg sync.WaitGroup
	for _, path := range []string{"/a", "/b"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			resp, err := f.client.Get("http://api.test" + path)
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}(path)
	}
	wg.Wait()

	require.Equal(t, []int{0, 1}, seen["/a"])
	require.Equal(t, []int{0, 1, 2, 3}, seen["/b"])
}

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) pipeline.Middleware {
		return func(next http.RoundTripper) http.RoundTripper {
			return pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, name)
				return next.RoundTrip(req)
			})
		}
	}
	base := pipeline.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		order = append(order, "transport")
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
	})

	p := pipeline.New(base, tag("first"), tag("second"))
	require.Equal(t, 2, p.Len())

	req, err := http.NewRequest(http.MethodGet, "http://api.test/", nil)
	require.NoError(t, err)
	_, err = p.RoundTrip(req)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "transport"}, order)
}

func TestShouldRetry(t *testing.T) {
	require.True(t, pipeline.ShouldRetry(nil, errors.New("reset")))
	require.False(t, pipeline.ShouldRetry(nil, context.Canceled))
	require.False(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusUnauthorized}, nil))
	require.False(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusNoContent}, nil))
	require.True(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusBadGateway}, nil))
	require.True(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusTooManyRequests}, nil))
	require.True(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusRequestTimeout}, nil))
	require.False(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusNotFound}, nil))
	require.False(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusBadRequest}, nil))
	require.False(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusForbidden}, nil))
	require.False(t, pipeline.ShouldRetry(&http.Response{StatusCode: http.StatusUnprocessableEntity}, nil))
}

func TestDelay(t *testing.T) {
	p := pipeline.DefaultRetryPolicy()
	require.Equal(t, 2*time.Second, p.Delay(1))
	require.Equal(t, 4*time.Second, p.Delay(2))
	require.Equal(t, 8*time.Second, p.Delay(3))
}
