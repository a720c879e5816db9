// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// breakerStates are exported as one series each so dashboards can stack them.
var breakerStates = [...]string{"closed", "half-open", "open"}

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "asentry_circuit_breaker_state",
		Help: "1 for the breaker's current state and 0 for the others.",
	}, []string{"component", "state"})

	breakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asentry_circuit_breaker_trips_total",
		Help: "Times a breaker opened, by cause.",
	}, []string{"component", "reason"})
)

// SetCircuitBreakerState marks state as current for component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range breakerStates {
		var v float64
		if s == state {
			v = 1
		}
		breakerState.WithLabelValues(component, s).Set(v)
	}
}

// RecordCircuitBreakerTrip counts one opening of component's breaker.
func RecordCircuitBreakerTrip(component, reason string) {
	breakerTrips.WithLabelValues(component, reason).Inc()
}
