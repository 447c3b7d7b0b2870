package domain

import (
	"time"
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusUnderReview Status = "UnderReview"
	StatusFlagged     Status = "Flagged"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusFlagged, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition is defined out of s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// LineItem is an informational receipt line. It has no identity of its own.
type LineItem struct {
	Description string  `json:"description" validate:"required,max=500"`
	Amount      float64 `json:"amount"`
}

// ReceiptData holds the structured fields extracted from a receipt image.
// Total need not equal the sum of Items.
type ReceiptData struct {
	Vendor      string     `json:"vendor" validate:"required,max=200"`
	Date        Date       `json:"date"`
	Total       float64    `json:"total" validate:"gte=0"`
	Items       []LineItem `json:"items" validate:"dive"`
	Description string     `json:"description,omitempty" validate:"max=2000"`
}

// ItemsTotal sums the line item amounts.
func (r ReceiptData) ItemsTotal() float64 {
	var sum float64
	for _, item := range r.Items {
		sum += item.Amount
	}
	return sum
}

// Claim is a single expense-reimbursement submission and its lifecycle state.
//
// FraudIndicators, AuthenticityScore, FraudRiskLevel and DuplicateCheck are
// computed together at creation and never recomputed. EmployeeName and
// ReceiptData never change after creation.
type Claim struct {
	ID            string      `json:"id"`
	EmployeeName  string      `json:"employeeName"`
	SubmittedDate Date        `json:"submittedDate"`
	ReceiptImage  string      `json:"receiptImage,omitempty"`
	ReceiptData   ReceiptData `json:"receiptData"`
	Status        Status      `json:"status"`

	// Fraud detection
	FraudIndicators   []FraudIndicator     `json:"fraudIndicators"`
	AuthenticityScore float64              `json:"authenticityScore"`
	FraudRiskLevel    RiskLevel            `json:"fraudRiskLevel"`
	DuplicateCheck    DuplicateCheckResult `json:"duplicateCheck"`

	// Review
	Feedback           string     `json:"feedback,omitempty"`
	FlaggedBy          string     `json:"flaggedBy,omitempty"`
	FlaggedAt          *time.Time `json:"flaggedAt,omitempty"`
	InvestigationNotes []string   `json:"investigationNotes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClaimRef is the slice of a prior claim the duplicate finder needs.
type ClaimRef struct {
	ID   string `json:"id"`
	Date Date   `json:"date"`
}

// ClaimFilter narrows a claim listing. Zero fields match everything.
type ClaimFilter struct {
	EmployeeName string
	Status       Status
	RiskLevel    RiskLevel
	Limit        int
	Offset       int
}

// Matches reports whether c satisfies the equality fields of the filter.
func (f ClaimFilter) Matches(c *Claim) bool {
	if f.EmployeeName != "" && c.EmployeeName != f.EmployeeName {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.RiskLevel != "" && c.FraudRiskLevel != f.RiskLevel {
		return false
	}
	return true
}

// StatusUpdate is the set of fields a review writes.
type StatusUpdate struct {
	Status      Status
	Feedback    string // empty keeps the stored feedback
	FlaggedBy   string
	FlaggedAt   *time.Time
	AppendNotes []string
	UpdatedAt   time.Time
}

// Apply writes the update onto c in memory, the same way repositories persist it.
func (u StatusUpdate) Apply(c *Claim) {
	c.Status = u.Status
	if u.Feedback != "" {
		c.Feedback = u.Feedback
	}
	if u.FlaggedAt != nil {
		c.FlaggedBy = u.FlaggedBy
		c.FlaggedAt = u.FlaggedAt
	}
	if len(u.AppendNotes) > 0 {
		c.InvestigationNotes = append(c.InvestigationNotes, u.AppendNotes...)
	}
	c.UpdatedAt = u.UpdatedAt
}
