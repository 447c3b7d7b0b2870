// Package worker consumes asynchronous claim submissions from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/claimguard/internal/claims"
	"github.com/opensource-finance/claimguard/internal/domain"
)

// Submitter runs the intake workflow.
type Submitter interface {
	Submit(ctx context.Context, sub claims.Submission) (*domain.Claim, error)
}

// SubmissionMessage is the payload published on domain.TopicClaimSubmit.
type SubmissionMessage struct {
	RequestID string `json:"requestId,omitempty"`
	claims.Submission
}

// Worker runs intake for submissions that arrive on the EventBus. Scoring
// results leave through the usual claim lifecycle events.
type Worker struct {
	bus       domain.EventBus
	submitter Submitter

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, submitter Submitter) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		submitter: submitter,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the submission topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicClaimSubmit, w.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", domain.TopicClaimSubmit, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("claim worker started", "topic", domain.TopicClaimSubmit)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var sm SubmissionMessage
	if err := json.Unmarshal(msg.Payload, &sm); err != nil {
		w.rejected.Add(1)
		slog.Error("failed to parse submission message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	requestID := sm.RequestID
	if requestID == "" {
		requestID = msg.ID
	}

	claim, err := w.submitter.Submit(ctx, sm.Submission)
	if err != nil {
		// Invalid submissions never succeed on redelivery
		if errors.Is(err, domain.ErrValidation) {
			w.rejected.Add(1)
			slog.Warn("rejected async submission",
				"request_id", requestID,
				"claimant", sm.ClaimantID,
				"error", err,
			)
			return nil
		}
		w.failed.Add(1)
		slog.Error("async submission failed",
			"request_id", requestID,
			"claimant", sm.ClaimantID,
			"error", err,
		)
		return err
	}

	w.processed.Add(1)
	slog.Info("async submission processed",
		"request_id", requestID,
		"claim_id", claim.ID,
		"status", claim.Status,
		"risk_level", claim.FraudRiskLevel,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop unsubscribes and cancels in-flight handlers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	w.subscriptions = nil

	slog.Info("claim worker stopped")
	return errors.Join(errs...)
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Rejected          int64    `json:"rejected"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	w.mu.Unlock()

	return Stats{
		SubscriptionCount: len(topics),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Rejected:          w.rejected.Load(),
		Failed:            w.failed.Load(),
	}
}
