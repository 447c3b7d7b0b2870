// Package duplicate finds prior claims that look like resubmissions of the
// same receipt.
package duplicate

import (
	"context"
	"log/slog"

	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/metrics"
)

// Reason is attached to every similar claim the finder reports.
const Reason = "same vendor, amount, and similar date"

// Lookup is the slice of the claim repository the finder needs.
type Lookup interface {
	FindByClaimantVendorAmount(ctx context.Context, claimantID, vendor string, total float64) ([]domain.ClaimRef, error)
}

// Finder checks a receipt against the claimant's earlier claims.
type Finder struct {
	lookup Lookup
	cfg    domain.DuplicateConfig
}

// NewFinder creates a duplicate finder.
func NewFinder(lookup Lookup, cfg domain.DuplicateConfig) *Finder {
	return &Finder{lookup: lookup, cfg: cfg}
}

// Find reports prior claims from the same claimant with the same vendor and
// total whose receipt date is within the configured window.
//
// The check fails open: a lookup error or timeout yields a non-duplicate
// result and is logged, so intake never blocks on it.
func (f *Finder) Find(ctx context.Context, claimantID string, receipt domain.ReceiptData) domain.DuplicateCheckResult {
	result := domain.DuplicateCheckResult{SimilarClaims: []domain.SimilarClaim{}}

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	refs, err := f.lookup.FindByClaimantVendorAmount(ctx, claimantID, receipt.Vendor, receipt.Total)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		slog.Warn("duplicate check degraded",
			"claimant", claimantID,
			"vendor", receipt.Vendor,
			"error", err,
		)
		metrics.DuplicateCheckDegraded()
		return result
	}

	for _, ref := range refs {
		if ref.Date.DaysApart(receipt.Date) > f.cfg.WindowDays {
			continue
		}
		result.SimilarClaims = append(result.SimilarClaims, domain.SimilarClaim{
			ClaimID:         ref.ID,
			SimilarityScore: f.cfg.SimilarityScore,
			Reason:          Reason,
		})
	}
	result.IsDuplicate = len(result.SimilarClaims) > 0

	return result
}
