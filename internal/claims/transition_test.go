package claims

import (
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

func TestTransition(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    domain.Status
		req     ReviewRequest
		wantErr error
	}{
		{"PendingToApproved", domain.StatusPending, ReviewRequest{Status: domain.StatusApproved}, nil},
		{"PendingToUnderReview", domain.StatusPending, ReviewRequest{Status: domain.StatusUnderReview}, nil},
		{"FlaggedToApproved", domain.StatusFlagged, ReviewRequest{Status: domain.StatusApproved}, nil},
		{"UnderReviewToRejected", domain.StatusUnderReview, ReviewRequest{Status: domain.StatusRejected, Feedback: "no receipt"}, nil},
		{"UnderReviewToFlagged", domain.StatusUnderReview, ReviewRequest{Status: domain.StatusFlagged, Feedback: "check vendor"}, nil},
		{"FlaggedToFlagged", domain.StatusFlagged, ReviewRequest{Status: domain.StatusFlagged, Feedback: "still open"}, nil},
		{"RejectedNeedsFeedback", domain.StatusPending, ReviewRequest{Status: domain.StatusRejected}, domain.ErrValidation},
		{"FlaggedNeedsFeedback", domain.StatusPending, ReviewRequest{Status: domain.StatusFlagged, Feedback: "   "}, domain.ErrValidation},
		{"UnknownStatus", domain.StatusPending, ReviewRequest{Status: "Escalated"}, domain.ErrValidation},
		{"BackToPending", domain.StatusUnderReview, ReviewRequest{Status: domain.StatusPending}, domain.ErrInvalidTransition},
		{"FromApproved", domain.StatusApproved, ReviewRequest{Status: domain.StatusRejected, Feedback: "x"}, domain.ErrInvalidTransition},
		{"FromRejected", domain.StatusRejected, ReviewRequest{Status: domain.StatusApproved}, domain.ErrInvalidTransition},
		{"ApprovedToApproved", domain.StatusApproved, ReviewRequest{Status: domain.StatusApproved}, domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := Transition(tt.from, tt.req, "hr@example.com", now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if update.Status != tt.req.Status {
				t.Errorf("expected status %s, got %s", tt.req.Status, update.Status)
			}
			if !update.UpdatedAt.Equal(now) {
				t.Errorf("expected UpdatedAt %v, got %v", now, update.UpdatedAt)
			}
		})
	}
}

func TestTransitionFeedbackField(t *testing.T) {
	_, err := Transition(domain.StatusPending, ReviewRequest{Status: domain.StatusRejected}, "hr@example.com", time.Now())

	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if _, ok := verr.Fields["feedback"]; !ok {
		t.Errorf("expected feedback field error, got %v", verr.Fields)
	}
}

func TestTransitionFlaggedStamps(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	update, err := Transition(domain.StatusUnderReview, ReviewRequest{
		Status:   domain.StatusFlagged,
		Feedback: "  vendor unknown  ",
	}, "hr@example.com", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.FlaggedBy != "hr@example.com" {
		t.Errorf("expected FlaggedBy hr@example.com, got %q", update.FlaggedBy)
	}
	if update.FlaggedAt == nil || !update.FlaggedAt.Equal(now) {
		t.Errorf("expected FlaggedAt %v, got %v", now, update.FlaggedAt)
	}
	if update.Feedback != "vendor unknown" {
		t.Errorf("expected trimmed feedback, got %q", update.Feedback)
	}
}

func TestTransitionApprovedKeepsFeedback(t *testing.T) {
	update, err := Transition(domain.StatusPending, ReviewRequest{
		Status:   domain.StatusApproved,
		Feedback: "looks fine",
	}, "hr@example.com", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Feedback != "looks fine" {
		t.Errorf("expected feedback kept, got %q", update.Feedback)
	}
	if update.FlaggedAt != nil {
		t.Error("approval must not stamp FlaggedAt")
	}
}

func TestTransitionNotes(t *testing.T) {
	update, err := Transition(domain.StatusPending, ReviewRequest{
		Status:             domain.StatusUnderReview,
		InvestigationNotes: []string{" called vendor ", "", "   ", "awaiting reply"},
	}, "hr@example.com", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"called vendor", "awaiting reply"}
	if len(update.AppendNotes) != len(want) {
		t.Fatalf("expected %v, got %v", want, update.AppendNotes)
	}
	for i := range want {
		if update.AppendNotes[i] != want[i] {
			t.Errorf("note %d: expected %q, got %q", i, want[i], update.AppendNotes[i])
		}
	}
}
