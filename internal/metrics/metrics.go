// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opensource-finance/claimguard/internal/domain"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claimguard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claimguard_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	claimsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimguard_claims_submitted_total",
		Help: "Claims accepted by intake, by initial risk level and status",
	}, []string{"risk_level", "status"})

	indicatorsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimguard_fraud_indicators_total",
		Help: "Fraud indicators emitted at intake",
	}, []string{"type", "severity"})

	duplicatesFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claimguard_duplicates_found_total",
		Help: "Submissions whose duplicate check matched at least one prior claim",
	})

	duplicateCheckDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claimguard_duplicate_check_degraded_total",
		Help: "Duplicate checks that failed open because the lookup errored or timed out",
	})

	reviewTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimguard_review_transitions_total",
		Help: "Review status transitions applied",
	}, []string{"from", "to"})
)

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "not_found"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ClaimSubmitted records an accepted claim and its indicators.
func ClaimSubmitted(c *domain.Claim) {
	claimsSubmitted.WithLabelValues(string(c.FraudRiskLevel), string(c.Status)).Inc()
	for _, ind := range c.FraudIndicators {
		indicatorsEmitted.WithLabelValues(string(ind.Type), string(ind.Severity)).Inc()
	}
	if c.DuplicateCheck.IsDuplicate {
		duplicatesFound.Inc()
	}
}

// DuplicateCheckDegraded records a fail-open duplicate check.
func DuplicateCheckDegraded() {
	duplicateCheckDegraded.Inc()
}

// ReviewTransition records a review status change.
func ReviewTransition(from, to domain.Status) {
	reviewTransitions.WithLabelValues(string(from), string(to)).Inc()
}
