// Package claims implements the claim intake and review workflows.
//
// Intake scores a submission and persists it with an initial status. Review
// applies a reviewer's decision as a status transition guarded by the
// status the reviewer saw.
package claims

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/claimguard/internal/bus"
	"github.com/opensource-finance/claimguard/internal/detect"
	"github.com/opensource-finance/claimguard/internal/domain"
	"github.com/opensource-finance/claimguard/internal/duplicate"
	"github.com/opensource-finance/claimguard/internal/metrics"
	"github.com/opensource-finance/claimguard/internal/risk"
)

var tracer = otel.Tracer("claimguard/claims")

// RuleEvaluator produces extra indicators from configured custom rules.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, receipt domain.ReceiptData, now time.Time) []domain.FraudIndicator
}

// Service runs the claim workflows.
type Service struct {
	repo       domain.ClaimRepository
	detector   *detect.Detector
	finder     *duplicate.Finder
	aggregator *risk.Aggregator
	rules      RuleEvaluator
	cache      domain.Cache
	cacheTTL   time.Duration
	bus        domain.EventBus
	clock      domain.Clock
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables read-through caching of single claim reads.
func WithCache(c domain.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithEventBus publishes lifecycle events.
func WithEventBus(b domain.EventBus) Option {
	return func(s *Service) { s.bus = b }
}

// WithClock overrides the wall clock.
func WithClock(c domain.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRules adds custom rule indicators to intake scoring.
func WithRules(r RuleEvaluator) Option {
	return func(s *Service) { s.rules = r }
}

// NewService wires the detectors, duplicate finder and aggregator around repo.
func NewService(repo domain.ClaimRepository, cfg domain.DetectionConfig, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		detector:   detect.New(cfg),
		finder:     duplicate.NewFinder(repo, cfg.Duplicate),
		aggregator: risk.NewAggregator(cfg.Weights),
		clock:      domain.SystemClock,
		cacheTTL:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submission is an incoming claim.
type Submission struct {
	ClaimantID   string             `json:"employeeName" validate:"required,max=320"`
	Receipt      domain.ReceiptData `json:"receiptData"`
	ReceiptImage string             `json:"receiptImage,omitempty" validate:"omitempty,url"`
}

// Submit validates and scores a submission and persists it as a new claim.
//
// The duplicate check and the detectors run concurrently; the aggregator
// waits for both. The duplicate check never fails the submission.
func (s *Service) Submit(ctx context.Context, sub Submission) (*domain.Claim, error) {
	ctx, span := tracer.Start(ctx, "claims.Submit",
		trace.WithAttributes(attribute.String("claim.claimant", sub.ClaimantID)),
	)
	defer span.End()

	if err := validateSubmission(sub); err != nil {
		span.SetStatus(codes.Error, "invalid submission")
		return nil, err
	}

	start := time.Now()
	now := s.clock.Now()

	var (
		wg         sync.WaitGroup
		dup        domain.DuplicateCheckResult
		indicators []domain.FraudIndicator
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		dup = s.finder.Find(ctx, sub.ClaimantID, sub.Receipt)
	}()
	go func() {
		defer wg.Done()
		indicators = s.detector.Detect(sub.Receipt, now)
		if s.rules != nil {
			indicators = append(indicators, s.rules.Evaluate(ctx, sub.Receipt, now)...)
		}
	}()
	wg.Wait()

	if indicators == nil {
		indicators = []domain.FraudIndicator{}
	}
	level, score := s.aggregator.Aggregate(indicators)

	claim := &domain.Claim{
		EmployeeName:      sub.ClaimantID,
		SubmittedDate:     domain.NewDate(now),
		ReceiptImage:      sub.ReceiptImage,
		ReceiptData:       sub.Receipt,
		Status:            risk.InitialStatus(level),
		FraudIndicators:   indicators,
		AuthenticityScore: score,
		FraudRiskLevel:    level,
		DuplicateCheck:    dup,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	id, err := s.repo.Create(ctx, claim)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return nil, domain.Unavailable("create claim", err)
	}
	claim.ID = id

	span.SetAttributes(
		attribute.String("claim.id", claim.ID),
		attribute.String("claim.risk_level", string(level)),
		attribute.Float64("claim.authenticity_score", score),
		attribute.Bool("claim.duplicate", dup.IsDuplicate),
	)
	metrics.ClaimSubmitted(claim)

	slog.Info("claim submitted",
		"claim_id", claim.ID,
		"claimant", claim.EmployeeName,
		"status", claim.Status,
		"risk_level", level,
		"authenticity_score", score,
		"indicators", len(indicators),
		"duplicate", dup.IsDuplicate,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	event := eventFor(claim, now)
	s.publish(ctx, domain.TopicClaimCreated, event)
	if claim.Status == domain.StatusFlagged {
		s.publish(ctx, domain.TopicClaimFlagged, event)
	}

	return claim, nil
}

func eventFor(c *domain.Claim, now time.Time) domain.ClaimEvent {
	return domain.ClaimEvent{
		ClaimID:           c.ID,
		EmployeeName:      c.EmployeeName,
		Status:            c.Status,
		RiskLevel:         c.FraudRiskLevel,
		AuthenticityScore: c.AuthenticityScore,
		IsDuplicate:       c.DuplicateCheck.IsDuplicate,
		Timestamp:         now,
	}
}

// publish is best effort; the claim is already persisted.
func (s *Service) publish(ctx context.Context, topic string, event domain.ClaimEvent) {
	if s.bus == nil {
		return
	}
	if err := bus.PublishJSON(ctx, s.bus, topic, event); err != nil {
		slog.Warn("failed to publish claim event",
			"topic", topic,
			"claim_id", event.ClaimID,
			"error", err,
		)
	}
}
