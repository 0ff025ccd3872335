// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package msearchkafka

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
)

// MetricsPrefix is the default prefix for all relay metric names.
const MetricsPrefix = "msearchkafka_"

// DefaultMetricsPort is the default port for the /metrics endpoint.
const DefaultMetricsPort = 9161

// Metrics holds the relay's Prometheus collectors. Bridge it into a Relay by
// registering Listener() as a RelayEvent listener.
type Metrics struct {
	results         *prometheus.CounterVec
	errors          *prometheus.CounterVec
	dropped         prometheus.Counter
	requestDuration prometheus.Histogram
	searchAttempts  prometheus.Histogram
}

// NewMetrics creates Metrics registered on the default Prometheus registry.
func NewMetrics(prefix string) *Metrics {
	return newMetricsWith(prometheus.DefaultRegisterer, prefix)
}

func newMetricsWith(reg prometheus.Registerer, prefix string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "results_total",
			Help: "Number of published results grouped by outcome",
		}, []string{"outcome"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "errors_total",
			Help: "Number of request errors grouped by error type",
		}, []string{"error"}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: prefix + "dropped_records_total",
			Help: "Number of consumed records dropped without a published result",
		}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "request_duration_seconds",
			Help:    "Time from intake of a request to its terminal disposition",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}),
		searchAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "search_attempts",
			Help:    "Search attempts made per request, including the first",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
	}
}

func (m *Metrics) RecordResult(outcome Outcome) {
	m.results.With(map[string]string{"outcome": outcome.wireStatus()}).Inc()
}

func (m *Metrics) RecordError(errorType string) {
	m.errors.With(map[string]string{"error": errorType}).Inc()
}

func (m *Metrics) RecordDropped() {
	m.dropped.Inc()
}

func (m *Metrics) RecordRequestDuration(d time.Duration) {
	m.requestDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordSearchAttempts(attempts int) {
	m.searchAttempts.Observe(float64(attempts))
}

// Listener returns a RelayEvent listener that records every terminal
// disposition. Pass it to AddRelayEventListener or put it in
// InitialRelayEventListeners.
func (m *Metrics) Listener() func(*RelayEvent) {
	return func(e *RelayEvent) {
		if e.Topic == "" {
			m.RecordDropped()
		} else {
			m.RecordResult(e.Outcome)
		}
		if e.ErrorType != "" {
			m.RecordError(e.ErrorType)
		}
		m.RecordRequestDuration(e.Duration)
		if e.Attempts > 0 {
			m.RecordSearchAttempts(e.Attempts)
		}
	}
}

// ServeMetrics exposes /metrics from the default registry on the given port
// and returns a function that shuts the server down.
func ServeMetrics(port int, logger kgo.Logger) func(context.Context) {
	if logger == nil {
		logger = &nopLogger{}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log(kgo.LogLevelError, "metrics server failed", "error", err.Error())
		}
	}()

	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Log(kgo.LogLevelWarn, "metrics server shutdown incomplete", "error", err.Error())
		}
	}
}
