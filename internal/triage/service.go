// Package triage scores finalized claims, routes them to an adjuster tier
// and assigns the adjuster.
package triage

import (
	"context"
	"strconv"
	"time"

	"claimsflow/internal/claims"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/common/metrics"
	"claimsflow/internal/common/observability"
	"claimsflow/internal/models"
	"claimsflow/internal/notifications"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("claimsflow/internal/triage")

type Service struct {
	repo   *claims.Repository
	src    Source
	obs    *observability.Observability
	logger logger.Logger
}

func NewService(repo *claims.Repository, src Source, obs *observability.Observability, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		src:    src,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"component": "triage"}),
	}
}

// ComputeScores scores the claim once. Later calls return the stored scores.
func (s *Service) ComputeScores(ctx context.Context, claimID string) (*models.ClaimScores, error) {
	return s.score(ctx, claimID, false)
}

// Rescore recomputes scores for a claim that has not been routed yet.
func (s *Service) Rescore(ctx context.Context, claimID string) (*models.ClaimScores, error) {
	return s.score(ctx, claimID, true)
}

func (s *Service) score(ctx context.Context, claimID string, recompute bool) (*models.ClaimScores, error) {
	ctx, span := tracer.Start(ctx, "triage.ComputeScores", trace.WithAttributes(
		attribute.String("claim.id", claimID),
		attribute.Bool("recompute", recompute),
	))
	defer span.End()
	start := time.Now()

	if !recompute {
		current, err := s.repo.Get(ctx, claimID)
		if err != nil {
			s.record(ctx, "compute_scores", err, start)
			return nil, err
		}
		if current.Scores != nil {
			metrics.ClaimsScored.WithLabelValues("cached").Inc()
			s.record(ctx, "compute_scores", nil, start)
			scores := *current.Scores
			return &scores, nil
		}
	}

	var (
		scores models.ClaimScores
		cached bool
	)
	// scores may have landed between the read above and taking the lock
	_, err := s.repo.Update(ctx, claimID, func(c *models.Claim) error {
		if c.Scores != nil && !recompute {
			scores = *c.Scores
			cached = true
			return nil
		}
		if c.Routing != nil {
			return apperrors.NewInvalidTransitionError(string(c.Status), "rescored").
				WithMetadata("reason", "claim already routed")
		}
		scores = Score(FactsOf(c), s.src)
		c.Scores = &scores
		return nil
	})
	s.record(ctx, "compute_scores", err, start)
	if err != nil {
		return nil, err
	}

	outcome := "computed"
	if cached {
		outcome = "cached"
	}
	metrics.ClaimsScored.WithLabelValues(outcome).Inc()
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("claim scored", map[string]interface{}{
		"claimId":    claimID,
		"outcome":    outcome,
		"complexity": scores.Complexity,
		"severity":   scores.Severity,
		"fraudRisk":  scores.FraudRisk,
		"urgency":    scores.Urgency,
	})
	return &scores, nil
}

// ComputeRouting routes a scored claim and moves it to triage. Passing nil
// scores routes on the stored scores; non-nil scores must equal them.
func (s *Service) ComputeRouting(ctx context.Context, claimID string, scores *models.ClaimScores) (*models.RoutingRecommendation, error) {
	ctx, span := tracer.Start(ctx, "triage.ComputeRouting", trace.WithAttributes(attribute.String("claim.id", claimID)))
	defer span.End()
	start := time.Now()

	var rec models.RoutingRecommendation
	_, err := s.repo.Update(ctx, claimID, func(c *models.Claim) error {
		if c.Scores == nil {
			return apperrors.NewInvalidTransitionError(string(c.Status), string(models.StatusTriage)).
				WithMetadata("reason", "claim has not been scored")
		}
		if scores != nil && *scores != *c.Scores {
			return apperrors.NewValidationFailedError("scores", "scores do not match the claim's stored scores")
		}
		if c.Status != models.StatusFNOLComplete {
			return apperrors.NewInvalidTransitionError(string(c.Status), string(models.StatusTriage))
		}

		rec = Route(*c.Scores)
		c.Routing = &rec
		c.Status = models.StatusTriage
		_, err := notifications.Append(c, models.NotificationStatusUpdate, notifications.TriagedMessage(rec.AdjusterTier), s.repo.Now())
		return err
	})
	s.record(ctx, "compute_routing", err, start)
	if err != nil {
		return nil, err
	}

	metrics.ClaimsRouted.WithLabelValues(string(rec.AdjusterTier), strconv.FormatBool(rec.StraightThroughEligible)).Inc()
	s.logger.Info("claim routed", map[string]interface{}{
		"claimId": claimID,
		"tier":    rec.AdjusterTier,
		"stp":     rec.StraightThroughEligible,
		"days":    rec.EstimatedResolutionDays,
	})
	return &rec, nil
}

// Assign gives a triaged claim to the adjuster of its routed tier.
func (s *Service) Assign(ctx context.Context, claimID string) (*models.Claim, error) {
	ctx, span := tracer.Start(ctx, "triage.Assign", trace.WithAttributes(attribute.String("claim.id", claimID)))
	defer span.End()
	start := time.Now()

	claim, err := s.repo.Update(ctx, claimID, func(c *models.Claim) error {
		if c.Status != models.StatusTriage || c.Routing == nil {
			return apperrors.NewInvalidTransitionError(string(c.Status), string(models.StatusAssigned))
		}
		name, err := AdjusterFor(c.Routing.AdjusterTier)
		if err != nil {
			return err
		}
		now := s.repo.Now()
		eta := EstimatedCompletion(now, c.Routing.EstimatedResolutionDays)

		c.AssignedAdjuster = name
		c.EstimatedCompletion = &eta
		c.Status = models.StatusAssigned
		_, err = notifications.Append(c, models.NotificationAssignment, notifications.AssignedMessage(name), now)
		return err
	})
	s.record(ctx, "assign", err, start)
	if err != nil {
		return nil, err
	}

	metrics.ClaimsAssigned.WithLabelValues(string(claim.Routing.AdjusterTier)).Inc()
	s.logger.Info("claim assigned", map[string]interface{}{
		"claimId":  claimID,
		"adjuster": claim.AssignedAdjuster,
	})
	return claim, nil
}

// Triage scores and routes a freshly finalized claim.
func (s *Service) Triage(ctx context.Context, claimID string) (*models.Claim, error) {
	if _, err := s.ComputeScores(ctx, claimID); err != nil {
		return nil, err
	}
	if _, err := s.ComputeRouting(ctx, claimID, nil); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, claimID)
}

func (s *Service) record(ctx context.Context, op string, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = string(apperrors.Normalize(err).Code)
		s.logger.Warn("triage operation rejected", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
		})
	}
	s.obs.RecordOperation(ctx, op, status, time.Since(start))
}
