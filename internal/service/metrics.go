package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for authEvents.
const (
	outcomeSuccess   = "success"
	outcomeInvalid   = "invalid"
	outcomeRevoked   = "revoked"
	outcomeThrottled = "throttled"
	outcomeError     = "error"
)

var authEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "identity_auth_events_total",
		Help: "Authentication operations by outcome.",
	},
	[]string{"operation", "outcome"},
)

func countAuth(operation, outcome string) {
	authEvents.WithLabelValues(operation, outcome).Inc()
}
