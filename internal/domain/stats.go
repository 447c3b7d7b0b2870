package domain

import "math"

// ClaimStats summarizes the stored claims that match a filter.
type ClaimStats struct {
	Count               int     `json:"count"`
	TotalAmount         float64 `json:"totalAmount"`
	AverageAmount       float64 `json:"averageAmount"`
	AverageAuthenticity float64 `json:"averageAuthenticityScore"`

	// ApprovalRate is approved / (approved + rejected) in percent.
	ApprovalRate float64 `json:"approvalRate"`
	// FlaggedRate is flagged / count in percent.
	FlaggedRate float64 `json:"flaggedRate"`

	ByStatus        map[Status]int        `json:"byStatus"`
	ByRiskLevel     map[RiskLevel]int     `json:"byRiskLevel"`
	ByIndicatorType map[IndicatorType]int `json:"byIndicatorType"`

	scoreSum float64
}

// NewClaimStats returns empty totals with non-nil breakdowns.
func NewClaimStats() *ClaimStats {
	return &ClaimStats{
		ByStatus:        make(map[Status]int),
		ByRiskLevel:     make(map[RiskLevel]int),
		ByIndicatorType: make(map[IndicatorType]int),
	}
}

// Add folds one claim into the totals. Call Finalize once all claims are in.
func (s *ClaimStats) Add(c *Claim) {
	s.AddTotals(1, c.ReceiptData.Total, c.AuthenticityScore)
	s.ByStatus[c.Status]++
	if c.FraudRiskLevel != "" {
		s.ByRiskLevel[c.FraudRiskLevel]++
	}
	for _, ind := range c.FraudIndicators {
		s.ByIndicatorType[ind.Type]++
	}
}

// AddTotals folds pre-aggregated sums into the totals.
func (s *ClaimStats) AddTotals(count int, amount, authenticitySum float64) {
	s.Count += count
	s.TotalAmount += amount
	s.scoreSum += authenticitySum
}

// Finalize derives the averages and rates.
func (s *ClaimStats) Finalize() {
	if s.Count > 0 {
		s.AverageAmount = s.TotalAmount / float64(s.Count)
		s.AverageAuthenticity = s.scoreSum / float64(s.Count)
		s.FlaggedRate = float64(s.ByStatus[StatusFlagged]) / float64(s.Count) * 100
	}
	if processed := s.ByStatus[StatusApproved] + s.ByStatus[StatusRejected]; processed > 0 {
		s.ApprovalRate = float64(s.ByStatus[StatusApproved]) / float64(processed) * 100
	}

	s.TotalAmount = round4(s.TotalAmount)
	s.AverageAmount = round4(s.AverageAmount)
	s.AverageAuthenticity = round4(s.AverageAuthenticity)
	s.ApprovalRate = round4(s.ApprovalRate)
	s.FlaggedRate = round4(s.FlaggedRate)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
