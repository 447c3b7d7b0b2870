// Package detect holds the pure indicator detectors. Each inspects one
// dimension of a receipt and emits zero or more fraud indicators.
package detect

import (
	"math"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// Detector runs the built-in detectors with a fixed configuration.
type Detector struct {
	amount domain.AmountThresholds
	date   domain.DateThresholds
}

// New creates a detector from the detection configuration.
func New(cfg domain.DetectionConfig) *Detector {
	return &Detector{
		amount: cfg.Amount,
		date:   cfg.Date,
	}
}

// Detect runs the amount and date detectors, in that order.
func (d *Detector) Detect(receipt domain.ReceiptData, now time.Time) []domain.FraudIndicator {
	indicators := Amount(d.amount, receipt.Total, now)
	return append(indicators, Date(d.date, receipt.Date, now)...)
}

// Amount flags round, unusually high and unusually small totals. The checks
// are independent, so one total may trigger several indicators.
func Amount(cfg domain.AmountThresholds, total float64, now time.Time) []domain.FraudIndicator {
	indicators := make([]domain.FraudIndicator, 0, 3)

	if total > cfg.RoundMinimum && isMultiple(total, cfg.RoundUnit) {
		indicators = append(indicators, domain.FraudIndicator{
			Type:        domain.IndicatorSuspiciousPattern,
			Severity:    domain.SeverityMedium,
			Description: "round amount is suspicious",
			Confidence:  cfg.RoundConfidence,
			DetectedAt:  now,
		})
	}

	if total > cfg.HighAmountCeiling {
		indicators = append(indicators, domain.FraudIndicator{
			Type:        domain.IndicatorUnusualAmount,
			Severity:    domain.SeverityHigh,
			Description: "amount exceeds typical health-expense ceiling",
			Confidence:  cfg.HighAmountConfidence,
			DetectedAt:  now,
		})
	}

	// Negative totals land here as well; validation rejects them before scoring.
	if total < cfg.SmallAmountFloor {
		indicators = append(indicators, domain.FraudIndicator{
			Type:        domain.IndicatorSuspiciousPattern,
			Severity:    domain.SeverityLow,
			Description: "unusually small amount",
			Confidence:  cfg.SmallAmountConfidence,
			DetectedAt:  now,
		})
	}

	return indicators
}

// Date flags receipt dates in the future or older than MaxAgeDays. Both
// checks compare calendar dates in UTC.
func Date(cfg domain.DateThresholds, date domain.Date, now time.Time) []domain.FraudIndicator {
	indicators := make([]domain.FraudIndicator, 0, 1)
	today := domain.NewDate(now)

	if date.After(today.Time) {
		indicators = append(indicators, domain.FraudIndicator{
			Type:        domain.IndicatorDateAnomaly,
			Severity:    domain.SeverityHigh,
			Description: "receipt date is in the future",
			Confidence:  cfg.FutureConfidence,
			DetectedAt:  now,
		})
	}

	oldest := today.AddDate(0, 0, -cfg.MaxAgeDays)
	if date.Before(oldest) {
		indicators = append(indicators, domain.FraudIndicator{
			Type:        domain.IndicatorDateAnomaly,
			Severity:    domain.SeverityMedium,
			Description: "receipt date is too old",
			Confidence:  cfg.StaleConfidence,
			DetectedAt:  now,
		})
	}

	return indicators
}

func isMultiple(total, unit float64) bool {
	if unit <= 0 || total == 0 {
		return false
	}
	return math.Mod(total, unit) == 0
}
