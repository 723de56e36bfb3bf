package pipeline

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts pipeline traffic. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Attempts      *prometheus.CounterVec
	Retries       *prometheus.CounterVec
	ForcedLogouts prometheus.Counter
}

// NewMetrics creates the pipeline collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcexpress_client_request_attempts_total",
				Help: "Outbound API request attempts by method and outcome",
			},
			[]string{"method", "code"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pcexpress_client_request_retries_total",
				Help: "Outbound API requests re-issued after a failure",
			},
			[]string{"method"},
		),
		ForcedLogouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pcexpress_client_forced_logouts_total",
				Help: "Sessions torn down after a 401 response",
			},
		),
	}
	for _, c := range []prometheus.Collector{m.Attempts, m.Retries, m.ForcedLogouts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Instrument counts every attempt that reaches the transport.
func Instrument(m *Metrics) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			resp, err := next.RoundTrip(req)
			code := "error"
			if err == nil {
				code = strconv.Itoa(resp.StatusCode)
			}
			m.attempted(req.Method, code)
			return resp, err
		})
	}
}

func (m *Metrics) attempted(method, code string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(method, code).Inc()
}

func (m *Metrics) retried(method string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(method).Inc()
}

// LoggedOut records a forced logout.
func (m *Metrics) LoggedOut() {
	if m == nil {
		return
	}
	m.ForcedLogouts.Inc()
}
