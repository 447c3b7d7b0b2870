package domain

import (
	"fmt"
	"time"
)

// RuleConfig is a custom indicator rule. When Expression evaluates to true
// for a receipt, an indicator of IndicatorType/Severity/Confidence is emitted.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// CEL expression over the receipt; must return bool
	Expression string `json:"expression"`

	IndicatorType IndicatorType `json:"indicatorType"`
	Severity      Severity      `json:"severity"`
	Confidence    float64       `json:"confidence"`

	// Whether rule is active
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Validate checks the non-expression fields.
func (r *RuleConfig) Validate() error {
	v := &ValidationError{}
	if r.ID == "" {
		v.Add("id", "id is required")
	}
	if r.Expression == "" {
		v.Add("expression", "expression is required")
	}
	if !r.IndicatorType.Valid() {
		v.Add("indicatorType", fmt.Sprintf("unknown indicator type %q", r.IndicatorType))
	}
	if !r.Severity.Valid() {
		v.Add("severity", fmt.Sprintf("unknown severity %q", r.Severity))
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		v.Add("confidence", "confidence must be between 0 and 1")
	}
	if v.HasErrors() {
		return v
	}
	return nil
}
