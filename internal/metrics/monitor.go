// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors exported by asentry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sentryFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asentry_sentry_fetch_total",
		Help: "Sentry API fetches by outcome",
	}, []string{"outcome"}) // outcome=success|bad_status|unavailable|timeout|bad_response|unexpected_format|circuit_open|error

	sentryFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asentry_sentry_fetch_duration_seconds",
		Help:    "Latency of Sentry API fetches",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	sentryObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asentry_sentry_objects",
		Help: "Number of objects in the last successful fetch",
	})

	threatUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asentry_threat_updates_total",
		Help: "Detected threat updates by kind",
	}, []string{"kind"}) // kind=new|increased

	cycleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asentry_monitor_cycles_total",
		Help: "Monitor cycles by result",
	}, []string{"result"}) // result=ok|seeded|error

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asentry_monitor_last_success_timestamp_seconds",
		Help: "Unix time of the last successful monitor cycle",
	})

	alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asentry_alerts_total",
		Help: "Alert deliveries by sink and result",
	}, []string{"sink", "result"}) // result=ok|error|skipped

	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asentry_store_operations_total",
		Help: "Store operations by backend, operation and result",
	}, []string{"backend", "op", "result"})
)

// RecordSentryFetch records one fetch and its latency.
func RecordSentryFetch(outcome string, d time.Duration) {
	sentryFetchTotal.WithLabelValues(outcome).Inc()
	sentryFetchDuration.Observe(d.Seconds())
}

// SetSentryObjects records the size of the latest object set.
func SetSentryObjects(n int) {
	sentryObjects.Set(float64(n))
}

// RecordThreatUpdate counts a detected update.
func RecordThreatUpdate(isNew bool) {
	kind := "increased"
	if isNew {
		kind = "new"
	}
	threatUpdatesTotal.WithLabelValues(kind).Inc()
}

// RecordCycle counts a monitor cycle. Successful cycles also stamp the
// last-success gauge.
func RecordCycle(result string, at time.Time) {
	cycleTotal.WithLabelValues(result).Inc()
	if result != "error" {
		lastSuccess.Set(float64(at.Unix()))
	}
}

// RecordAlert counts an alert delivery attempt.
func RecordAlert(sink, result string) {
	alertsTotal.WithLabelValues(sink, result).Inc()
}

// RecordStoreOp counts a store operation.
func RecordStoreOp(backend, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOpsTotal.WithLabelValues(backend, op, result).Inc()
}
