// Package risk aggregates fraud indicators into a risk level and an
// authenticity score.
//
// The score is an additive penalty model: each indicator subtracts
// confidence × severity weight from 1.0. It is a heuristic, not a calibrated
// probability.
package risk

import (
	"math"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// Aggregator combines indicators into a single assessment.
type Aggregator struct {
	weights domain.SeverityWeights
}

// NewAggregator creates an aggregator with the given severity weights.
func NewAggregator(weights domain.SeverityWeights) *Aggregator {
	return &Aggregator{weights: weights}
}

// Aggregate returns the risk level and the authenticity score in [0, 100].
func (a *Aggregator) Aggregate(indicators []domain.FraudIndicator) (domain.RiskLevel, float64) {
	return Level(indicators), a.Score(indicators)
}

// Level classifies indicators. First match wins:
// any high → high, two or more medium → high, one medium → medium, else low.
func Level(indicators []domain.FraudIndicator) domain.RiskLevel {
	var high, medium int
	for _, ind := range indicators {
		switch ind.Severity {
		case domain.SeverityHigh:
			high++
		case domain.SeverityMedium:
			medium++
		}
	}

	switch {
	case high > 0:
		return domain.RiskHigh
	case medium > 1:
		return domain.RiskHigh
	case medium == 1:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// Score computes max(0, 1 − Σ confidence×weight) × 100, rounded to four
// decimal places. No indicators scores 100.
func (a *Aggregator) Score(indicators []domain.FraudIndicator) float64 {
	var penalty float64
	for _, ind := range indicators {
		penalty += ind.Confidence * a.weights.Weight(ind.Severity)
	}

	score := math.Max(0, 1-penalty) * 100
	score = math.Min(100, score)
	return math.Round(score*1e4) / 1e4
}

// InitialStatus routes a freshly scored claim: high risk is flagged, medium
// goes to review, anything else waits as pending.
func InitialStatus(level domain.RiskLevel) domain.Status {
	switch level {
	case domain.RiskHigh:
		return domain.StatusFlagged
	case domain.RiskMedium:
		return domain.StatusUnderReview
	default:
		return domain.StatusPending
	}
}
