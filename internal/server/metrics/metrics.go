// Package metrics exposes Prometheus instrumentation for the auth flows and
// the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded with AuthEvent.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder holds the collectors. The zero value is not usable; a nil
// *Recorder is, and records nothing.
type Recorder struct {
	authEvents       *prometheus.CounterVec
	notifyFailures   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	versionConflicts prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)

	return &Recorder{
		authEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idkeeper",
			Name:      "auth_events_total",
			Help:      "Authentication state machine operations by outcome.",
		}, []string{"event", "outcome"}),
		notifyFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idkeeper",
			Name:      "notification_failures_total",
			Help:      "Outbound emails the notifier failed to accept.",
		}, []string{"kind"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idkeeper",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "idkeeper",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		}, []string{"method", "route"}),
		versionConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "idkeeper",
			Name:      "store_version_conflicts_total",
			Help:      "Account updates retried after a concurrent write.",
		}),
		gatherer: reg,
	}
}

func (r *Recorder) AuthEvent(event, outcome string) {
	if r == nil {
		return
	}
	r.authEvents.WithLabelValues(event, outcome).Inc()
}

func (r *Recorder) NotificationFailed(kind string) {
	if r == nil {
		return
	}
	r.notifyFailures.WithLabelValues(kind).Inc()
}

func (r *Recorder) VersionConflict() {
	if r == nil {
		return
	}
	r.versionConflicts.Inc()
}

func (r *Recorder) ObserveHTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
