package claims

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/claimguard/internal/cache"
	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/metrics"
)

// CanView reports whether caller may read claim: reviewers always,
// claimants only for their own claims.
func CanView(claim *domain.Claim, caller domain.Caller) bool {
	if caller.IsReviewer() {
		return true
	}
	return caller.ID != "" && claim.EmployeeName == caller.ID
}

// Get returns a claim the caller may view.
func (s *Service) Get(ctx context.Context, id string, caller domain.Caller) (*domain.Claim, error) {
	claim, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(claim, caller) {
		return nil, fmt.Errorf("%w: claim %s belongs to another claimant", domain.ErrForbidden, id)
	}
	return claim, nil
}

// load reads through the cache. Cache failures fall back to the repository.
// The fill never replaces an existing entry, so a read that raced a review
// cannot put the pre-review claim back.
func (s *Service) load(ctx context.Context, id string) (*domain.Claim, error) {
	if s.cache != nil {
		claim, err := cache.GetClaim(ctx, s.cache, id)
		if err != nil {
			slog.Warn("claim cache read failed", "claim_id", id, "error", err)
		}
		if claim != nil {
			return claim, nil
		}
	}

	claim, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Unavailable("get claim", err)
	}

	if s.cache != nil {
		if _, err := cache.AddClaim(ctx, s.cache, claim, s.cacheTTL); err != nil {
			slog.Warn("claim cache write failed", "claim_id", id, "error", err)
		}
	}
	return claim, nil
}

// List returns claims visible to the caller, newest first. Employees only
// ever see their own claims whatever the filter says.
func (s *Service) List(ctx context.Context, caller domain.Caller, filter domain.ClaimFilter) ([]*domain.Claim, error) {
	if !caller.IsReviewer() {
		if caller.ID == "" {
			return nil, fmt.Errorf("%w: caller identity required", domain.ErrForbidden)
		}
		filter.EmployeeName = caller.ID
	}

	claims, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.Unavailable("list claims", err)
	}
	return claims, nil
}

// Review applies a reviewer's decision. The write only lands if the claim is
// still in the status it was read in; a concurrent review yields
// domain.ErrConflict.
func (s *Service) Review(ctx context.Context, id string, reviewer domain.Caller, req ReviewRequest) (*domain.Claim, error) {
	ctx, span := tracer.Start(ctx, "claims.Review",
		trace.WithAttributes(
			attribute.String("claim.id", id),
			attribute.String("claim.target_status", string(req.Status)),
		),
	)
	defer span.End()

	if !reviewer.IsReviewer() {
		span.SetStatus(codes.Error, "forbidden")
		return nil, fmt.Errorf("%w: only reviewers may change claim status", domain.ErrForbidden)
	}

	claim, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.Unavailable("get claim", err)
	}

	now := s.clock.Now()
	from := claim.Status

	update, err := Transition(from, req, reviewer.ID, now)
	if err != nil {
		span.SetStatus(codes.Error, "rejected transition")
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, &from, update); err != nil {
		span.RecordError(err)
		return nil, domain.Unavailable("update claim status", err)
	}
	update.Apply(claim)

	if s.cache != nil {
		s.refreshCache(ctx, claim)
	}

	metrics.ReviewTransition(from, claim.Status)
	slog.Info("claim reviewed",
		"claim_id", id,
		"reviewer", reviewer.ID,
		"from", from,
		"to", claim.Status,
		"notes_added", len(update.AppendNotes),
	)

	event := eventFor(claim, now)
	event.PreviousStatus = from
	event.Reviewer = reviewer.ID
	s.publish(ctx, domain.TopicClaimReviewed, event)
	if claim.Status == domain.StatusFlagged {
		s.publish(ctx, domain.TopicClaimFlagged, event)
	}

	return claim, nil
}

// refreshCache replaces the cached claim with the reviewed one. If the write
// fails the entry is dropped instead.
func (s *Service) refreshCache(ctx context.Context, claim *domain.Claim) {
	err := cache.SetClaim(ctx, s.cache, claim, s.cacheTTL)
	if err == nil {
		return
	}
	slog.Warn("claim cache refresh failed", "claim_id", claim.ID, "error", err)
	if err := s.cache.Delete(ctx, cache.ClaimKey(claim.ID)); err != nil {
		slog.Warn("claim cache invalidation failed", "claim_id", claim.ID, "error", err)
	}
}
