package claims

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// ReviewRequest is a reviewer's decision on a claim.
type ReviewRequest struct {
	Status             domain.Status `json:"status"`
	Feedback           string        `json:"feedback,omitempty"`
	InvestigationNotes []string      `json:"investigationNotes,omitempty"`
}

// Transition decides whether a claim in status from may move as req asks
// and returns the fields to write.
//
//	non-terminal → Approved     always; feedback kept when given
//	non-terminal → Rejected     feedback required
//	non-terminal → Flagged      feedback required; stamps FlaggedBy/FlaggedAt
//	non-terminal → UnderReview  always
//
// Approved and Rejected are terminal. Moving back to Pending is not a
// transition. Notes are appended whatever the target.
func Transition(from domain.Status, req ReviewRequest, reviewerID string, now time.Time) (domain.StatusUpdate, error) {
	if !req.Status.Valid() {
		return domain.StatusUpdate{}, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", req.Status))
	}
	if from.Terminal() {
		return domain.StatusUpdate{}, fmt.Errorf("%w: claim is already %s", domain.ErrInvalidTransition, from)
	}

	feedback := strings.TrimSpace(req.Feedback)
	update := domain.StatusUpdate{
		Status:      req.Status,
		Feedback:    feedback,
		AppendNotes: cleanNotes(req.InvestigationNotes),
		UpdatedAt:   now,
	}

	switch req.Status {
	case domain.StatusPending:
		return domain.StatusUpdate{}, fmt.Errorf("%w: cannot move a claim from %s back to %s", domain.ErrInvalidTransition, from, req.Status)

	case domain.StatusRejected, domain.StatusFlagged:
		if feedback == "" {
			return domain.StatusUpdate{}, domain.NewValidationError("feedback",
				fmt.Sprintf("feedback is required when status is %s", req.Status))
		}
		if req.Status == domain.StatusFlagged {
			flaggedAt := now
			update.FlaggedBy = reviewerID
			update.FlaggedAt = &flaggedAt
		}
	}

	return update, nil
}

func cleanNotes(notes []string) []string {
	var out []string
	for _, n := range notes {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
