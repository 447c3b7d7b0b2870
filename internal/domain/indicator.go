package domain

import "time"

// IndicatorType classifies a fraud signal.
type IndicatorType string

const (
	IndicatorSuspiciousPattern   IndicatorType = "suspicious_pattern"
	IndicatorUnusualAmount       IndicatorType = "unusual_amount"
	IndicatorDateAnomaly         IndicatorType = "date_anomaly"
	IndicatorImageManipulation   IndicatorType = "image_manipulation"
	IndicatorDuplicateReceipt    IndicatorType = "duplicate_receipt"
	IndicatorVendorMismatch      IndicatorType = "vendor_mismatch"
	IndicatorFormatInconsistency IndicatorType = "receipt_format_inconsistency"
)

// Valid reports whether t is a known indicator type.
func (t IndicatorType) Valid() bool {
	switch t {
	case IndicatorSuspiciousPattern, IndicatorUnusualAmount, IndicatorDateAnomaly,
		IndicatorImageManipulation, IndicatorDuplicateReceipt, IndicatorVendorMismatch,
		IndicatorFormatInconsistency:
		return true
	}
	return false
}

// Severity grades a single indicator.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// RiskLevel is the coarse classification that drives workflow routing.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// FraudIndicator is one detected signal. Created by detectors at scoring
// time and owned by the claim that triggered it.
type FraudIndicator struct {
	Type        IndicatorType `json:"type"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	Confidence  float64       `json:"confidence"` // 0.0 to 1.0
	DetectedAt  time.Time     `json:"detectedAt"`
}

// SimilarClaim is a prior claim matched by the duplicate finder.
type SimilarClaim struct {
	ClaimID         string  `json:"claimId"`
	SimilarityScore float64 `json:"similarityScore"`
	Reason          string  `json:"reason"`
}

// DuplicateCheckResult is produced once per submission.
type DuplicateCheckResult struct {
	IsDuplicate   bool           `json:"isDuplicate"`
	SimilarClaims []SimilarClaim `json:"similarClaims"`
}
