package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resource_auth",
		Name:      "attempts_total",
		Help:      "Authentication attempts by method and outcome.",
	}, []string{"method", "outcome"})

	challengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "resource_auth",
		Name:      "otp_challenges_issued_total",
		Help:      "One-time-code challenges issued.",
	})
)

// RecordAuthOutcome counts one authentication attempt.
func RecordAuthOutcome(method, outcome string) {
	authOutcomes.WithLabelValues(method, outcome).Inc()
}

// RecordChallengeIssued counts one issued OTP challenge.
func RecordChallengeIssued() {
	challengesIssued.Inc()
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
