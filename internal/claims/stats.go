package claims

import (
	"context"
	"fmt"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// Stats aggregates the stored claims matching filter for the reviewer
// dashboard. Only reviewers may read it.
func (s *Service) Stats(ctx context.Context, caller domain.Caller, filter domain.ClaimFilter) (*domain.ClaimStats, error) {
	if !caller.IsReviewer() {
		return nil, fmt.Errorf("%w: only reviewers may read claim statistics", domain.ErrForbidden)
	}

	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return nil, domain.Unavailable("claim stats", err)
	}
	return stats, nil
}
