// Package metrics exposes Prometheus collectors for bigmi clients and transports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	bigmi "github.com/lifinance/bigmi-sub000"
	"github.com/lifinance/bigmi-sub000/httpx"
	"github.com/lifinance/bigmi-sub000/transport"
)

const DefaultNamespace = "bigmi"

type Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	retriesTotal     *prometheus.CounterVec
	fallbackFailures *prometheus.CounterVec
}

// New builds the collectors. They are not registered; see Register.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Number of provider HTTP requests by status",
		}, []string{"provider", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Provider HTTP round-trip latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_retries_total",
			Help:      "Number of retried attempts by method",
		}, []string{"method"}),
		fallbackFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_failures_total",
			Help:      "Number of transports that failed a call inside a fallback chain",
		}, []string{"transport", "method", "kind"}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requestsTotal, m.requestDuration, m.retriesTotal, m.fallbackFailures}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Middleware counts and times every HTTP round-trip of provider. Requests that fail before
// a response are counted with status "error".
func (m *Metrics) Middleware(provider string) httpx.Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return httpx.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)
			m.requestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
			status := "error"
			if err == nil && resp != nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			m.requestsTotal.WithLabelValues(provider, status).Inc()
			return resp, err
		})
	}
}

// ObserveRetry is a client retry observer (bigmi.WithRetryObserver).
func (m *Metrics) ObserveRetry(e bigmi.RetryEvent) {
	m.retriesTotal.WithLabelValues(string(e.Method)).Inc()
}

// ObserveFailure is a fallback failure observer (transport.WithFailureObserver).
func (m *Metrics) ObserveFailure(e transport.FailureEvent) {
	m.fallbackFailures.WithLabelValues(e.Transport, string(e.Method), string(bigmi.KindOf(e.Err))).Inc()
}

// Handler serves the metrics of g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
