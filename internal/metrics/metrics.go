// Package metrics holds the Prometheus collectors for the review console.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JaimeStill/creditdesk/pkg/middleware"
)

const namespace = "creditdesk"

var (
	// Registry holds the console's collectors.
	Registry = prometheus.NewRegistry()

	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "decisions_total",
			Help:      "Decisions submitted to the backend by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	locks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "locks_total",
			Help:      "Decision lock attempts by outcome.",
		},
		[]string{"outcome"},
	)

	emails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "emails_total",
			Help:      "Decision notifications by delivery mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)

	pollFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "failures_total",
			Help:      "Failed poll attempts by poller.",
		},
		[]string{"poller"},
	)

	staleSnapshots = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "discarded_snapshots_total",
			Help:      "Fetched snapshots discarded as stale or regressive.",
		},
	)

	views = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "views",
			Name:      "mounted",
			Help:      "Currently mounted review views.",
		},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		decisions,
		locks,
		emails,
		pollFailures,
		staleSnapshots,
		views,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request durations by method, leading path segment and status.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := middleware.NewResponseRecorder(w)
		start := time.Now()

		next.ServeHTTP(rec, r)

		httpDuration.
			WithLabelValues(r.Method, route(r.URL.Path), strconv.Itoa(rec.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// RecordDecision counts a submitted decision.
func RecordDecision(override bool, err error) {
	kind := "verified"
	if override {
		kind = "override"
	}
	decisions.WithLabelValues(kind, outcome(err)).Inc()
}

// RecordLock counts a lock attempt.
func RecordLock(err error) {
	locks.WithLabelValues(outcome(err)).Inc()
}

// RecordEmail counts a notification attempt.
func RecordEmail(mode string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	emails.WithLabelValues(mode, result).Inc()
}

// RecordPollFailure counts a swallowed poll error.
func RecordPollFailure(poller string) {
	pollFailures.WithLabelValues(poller).Inc()
}

// RecordDiscardedSnapshot counts a snapshot that was not applied.
func RecordDiscardedSnapshot() {
	staleSnapshots.Inc()
}

// ViewMounted increments the mounted view gauge.
func ViewMounted() { views.Inc() }

// ViewUnmounted decrements the mounted view gauge.
func ViewUnmounted() { views.Dec() }

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// route keeps label cardinality bounded: only the leading path segment is
// used, so identifiers never become labels.
func route(path string) string {
	first, _, _ := strings.Cut(strings.Trim(path, "/"), "/")
	return "/" + first
}
