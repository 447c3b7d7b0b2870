package detect

import (
	"testing"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

var now = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

type want struct {
	typ      domain.IndicatorType
	severity domain.Severity
}

func kinds(indicators []domain.FraudIndicator) []want {
	out := make([]want, len(indicators))
	for i, ind := range indicators {
		out[i] = want{ind.Type, ind.Severity}
	}
	return out
}

func equalKinds(a, b []want) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAmount(t *testing.T) {
	cfg := domain.DefaultDetectionConfig().Amount

	round := want{domain.IndicatorSuspiciousPattern, domain.SeverityMedium}
	high := want{domain.IndicatorUnusualAmount, domain.SeverityHigh}
	small := want{domain.IndicatorSuspiciousPattern, domain.SeverityLow}

	tests := []struct {
		name  string
		total float64
		want  []want
	}{
		{"ordinary amount", 1234.56, nil},
		{"exactly 1000 is not flagged as round", 1000, nil},
		{"round thousands above 1000", 2000, []want{round}},
		{"non-round above 1000", 2500, nil},
		{"just above ceiling", 50000.01, []want{high}},
		{"ceiling itself is fine", 50000, []want{round}},
		{"round and high together", 1000000, []want{round, high}},
		{"small amount", 99.99, []want{small}},
		{"floor itself is fine", 100, nil},
		{"zero is small but not round", 0, []want{small}},
		{"negative total is still flagged", -5000, []want{small}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Amount(cfg, tt.total, now)
			if !equalKinds(kinds(got), tt.want) {
				t.Errorf("Amount(%v) = %v, want %v", tt.total, kinds(got), tt.want)
			}
			for _, ind := range got {
				if !ind.DetectedAt.Equal(now) {
					t.Errorf("expected DetectedAt %v, got %v", now, ind.DetectedAt)
				}
			}
		})
	}
}

func TestAmountConfidence(t *testing.T) {
	cfg := domain.DefaultDetectionConfig().Amount

	got := Amount(cfg, 60000, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 indicators, got %d", len(got))
	}
	if got[0].Confidence != 0.7 {
		t.Errorf("expected round confidence 0.7, got %v", got[0].Confidence)
	}
	if got[1].Confidence != 0.8 {
		t.Errorf("expected high-amount confidence 0.8, got %v", got[1].Confidence)
	}

	got = Amount(cfg, 50, now)
	if len(got) != 1 || got[0].Confidence != 0.5 {
		t.Errorf("expected one small-amount indicator at 0.5, got %+v", got)
	}
}

func TestDate(t *testing.T) {
	cfg := domain.DefaultDetectionConfig().Date

	tests := []struct {
		name string
		date domain.Date
		want []want
	}{
		{"today", domain.NewDate(now), nil},
		{"last month", domain.MustParseDate("2024-05-15"), nil},
		{"tomorrow", domain.MustParseDate("2024-06-16"), []want{{domain.IndicatorDateAnomaly, domain.SeverityHigh}}},
		{"exactly 365 days ago", domain.MustParseDate("2023-06-16"), nil},
		{"more than 365 days ago", domain.MustParseDate("2023-06-14"), []want{{domain.IndicatorDateAnomaly, domain.SeverityMedium}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Date(cfg, tt.date, now)
			if !equalKinds(kinds(got), tt.want) {
				t.Errorf("Date(%s) = %v, want %v", tt.date, kinds(got), tt.want)
			}
		})
	}

	future := Date(cfg, domain.MustParseDate("2030-01-01"), now)
	if len(future) != 1 || future[0].Confidence != 0.9 {
		t.Errorf("expected future indicator at 0.9, got %+v", future)
	}
	stale := Date(cfg, domain.MustParseDate("2020-01-01"), now)
	if len(stale) != 1 || stale[0].Confidence != 0.7 {
		t.Errorf("expected stale indicator at 0.7, got %+v", stale)
	}
}

func TestDetectorOrder(t *testing.T) {
	d := New(domain.DefaultDetectionConfig())

	receipt := domain.ReceiptData{
		Vendor: "Clinic",
		Date:   domain.MustParseDate("2024-06-16"),
		Total:  60000,
	}

	got := kinds(d.Detect(receipt, now))
	expected := []want{
		{domain.IndicatorSuspiciousPattern, domain.SeverityMedium},
		{domain.IndicatorUnusualAmount, domain.SeverityHigh},
		{domain.IndicatorDateAnomaly, domain.SeverityHigh},
	}
	if !equalKinds(got, expected) {
		t.Errorf("Detect() = %v, want %v", got, expected)
	}
}

func TestCustomThresholds(t *testing.T) {
	cfg := domain.DefaultDetectionConfig()
	cfg.Amount.HighAmountCeiling = 10000
	cfg.Date.MaxAgeDays = 30

	d := New(cfg)
	receipt := domain.ReceiptData{
		Vendor: "Pharmacy",
		Date:   domain.MustParseDate("2024-04-01"),
		Total:  12345,
	}

	got := kinds(d.Detect(receipt, now))
	expected := []want{
		{domain.IndicatorUnusualAmount, domain.SeverityHigh},
		{domain.IndicatorDateAnomaly, domain.SeverityMedium},
	}
	if !equalKinds(got, expected) {
		t.Errorf("Detect() = %v, want %v", got, expected)
	}
}
