// Package claims owns persisted claims. Every read-modify-write runs under
// a per-claim lock and reaches the store only after the mutation succeeded.
package claims

import (
	"context"
	"fmt"
	"time"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/models"
	"claimsflow/internal/notifications"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("claimsflow/internal/claims")

type Repository struct {
	store     Store
	locks     *KeyedMutex
	logger    logger.Logger
	observers []Observer
	sinks     []NotificationSink
	now       func() time.Time
	newID     func() string
}

type Option func(*Repository)

// WithObserver registers an observer for committed writes.
func WithObserver(o Observer) Option {
	return func(r *Repository) { r.observers = append(r.observers, o) }
}

// WithNotificationSink registers outbound delivery for new notifications.
func WithNotificationSink(s NotificationSink) Option {
	return func(r *Repository) { r.sinks = append(r.sinks, s) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func NewRepository(store Store, log logger.Logger, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		locks:  NewKeyedMutex(),
		logger: log.WithFields(map[string]interface{}{"component": "claim-repository"}),
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now exposes the repository clock so callers stamp mutations consistently.
func (r *Repository) Now() time.Time {
	return r.now().UTC()
}

// Create persists a finalized claim and assigns its identity.
func (r *Repository) Create(ctx context.Context, claim *models.Claim) (*models.Claim, error) {
	ctx, span := tracer.Start(ctx, "claims.Create")
	defer span.End()

	c := claim.Clone()
	if c.ID == "" {
		c.ID = r.newID()
	}
	now := r.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = models.StatusFNOLComplete
	}
	if c.Photos == nil {
		c.Photos = []models.ClaimPhoto{}
	}
	if c.Notifications == nil {
		c.Notifications = []models.ClaimNotification{}
	}
	if !c.Status.Valid() {
		return nil, apperrors.NewValidationFailedError("status", "unknown status "+string(c.Status))
	}

	span.SetAttributes(attribute.String("claim.id", c.ID))
	if err := r.store.Create(ctx, c); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	r.logger.Info("claim created", map[string]interface{}{
		"claimId":      c.ID,
		"accidentType": c.AccidentType,
		"photos":       len(c.Photos),
	})
	r.committed(ctx, c, nil)
	return c.Clone(), nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Claim, error) {
	return r.store.Get(ctx, id)
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]*models.Claim, error) {
	return r.store.List(ctx, filter)
}

// Update applies fn to a copy of the claim while holding its lock. The copy
// is validated and written only when fn returns nil. If another writer saved
// the claim in between, fn is reapplied to the fresh copy.
func (r *Repository) Update(ctx context.Context, id string, fn func(c *models.Claim) error) (*models.Claim, error) {
	ctx, span := tracer.Start(ctx, "claims.Update", trace.WithAttributes(attribute.String("claim.id", id)))
	defer span.End()

	unlock := r.locks.Lock(id)
	defer unlock()

	var prev, next *models.Claim
	for attempt := 1; ; attempt++ {
		var err error
		prev, next, err = r.apply(ctx, id, fn)
		if err == nil {
			break
		}
		if apperrors.IsConflict(err) && attempt < maxUpdateAttempts {
			r.logger.Debug("claim changed underneath update, retrying", map[string]interface{}{
				"claimId": id,
				"attempt": attempt,
			})
			continue
		}
		recordSpanError(span, err)
		return nil, err
	}

	if prev.Status != next.Status {
		r.logger.Info("claim status advanced", map[string]interface{}{
			"claimId": id,
			"from":    prev.Status,
			"to":      next.Status,
		})
	}
	r.committed(ctx, next, prev)
	return next.Clone(), nil
}

// maxUpdateAttempts bounds re-reads after another writer wins the guarded
// save.
const maxUpdateAttempts = 3

func (r *Repository) apply(ctx context.Context, id string, fn func(c *models.Claim) error) (prev, next *models.Claim, err error) {
	prev, err = r.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	next = prev.Clone()
	if err := fn(next); err != nil {
		return nil, nil, err
	}
	if err := checkMutation(prev, next); err != nil {
		return nil, nil, err
	}
	next.UpdatedAt = r.Now()
	if err := r.store.Save(ctx, next, prev.UpdatedAt); err != nil {
		return nil, nil, err
	}
	return prev, next, nil
}

// UpdateClaim applies an external patch. Status may only move one stage
// forward, and never into assigned: assignment goes through
// triage.Service.Assign. Adjuster and completion estimate can only be
// patched once the claim is assigned.
func (r *Repository) UpdateClaim(ctx context.Context, id string, patch models.ClaimPatch) (*models.Claim, error) {
	if patch.Empty() {
		return nil, apperrors.NewValidationFailedError("patch", "patch has no fields")
	}
	return r.Update(ctx, id, func(c *models.Claim) error {
		if patch.Status != nil && *patch.Status == models.StatusAssigned && c.Status != models.StatusAssigned {
			return apperrors.NewInvalidTransitionError(string(c.Status), string(models.StatusAssigned)).
				WithMetadata("reason", "use the assign operation")
		}
		if (patch.AssignedAdjuster != nil || patch.EstimatedCompletion != nil) &&
			c.Status.Rank() < models.StatusAssigned.Rank() {
			return apperrors.NewInvalidTransitionError(string(c.Status), string(models.StatusAssigned)).
				WithMetadata("reason", "claim is not assigned yet")
		}
		if patch.AssignedAdjuster != nil {
			c.AssignedAdjuster = *patch.AssignedAdjuster
		}
		if patch.EstimatedCompletion != nil {
			t := patch.EstimatedCompletion.UTC()
			c.EstimatedCompletion = &t
		}
		if patch.Status != nil && *patch.Status != c.Status {
			if !c.Status.CanAdvanceTo(*patch.Status) {
				return apperrors.NewInvalidTransitionError(string(c.Status), string(*patch.Status))
			}
			c.Status = *patch.Status
		}
		return nil
	})
}

// AddNotification appends one entry to the claim's log.
func (r *Repository) AddNotification(ctx context.Context, id string, typ models.NotificationType, message string) (models.ClaimNotification, error) {
	var added models.ClaimNotification
	_, err := r.Update(ctx, id, func(c *models.Claim) error {
		n, err := notifications.Append(c, typ, message, r.Now())
		if err != nil {
			return err
		}
		added = n
		return nil
	})
	return added, err
}

// Notifications lists a claim's log in creation order together with the
// unread count of the full log.
func (r *Repository) Notifications(ctx context.Context, id string, read *bool) ([]models.ClaimNotification, int, error) {
	c, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return notifications.Filter(c.Notifications, read), notifications.UnreadCount(c.Notifications), nil
}

// MarkAllRead marks every notification of the claim read.
func (r *Repository) MarkAllRead(ctx context.Context, id string) (*models.Claim, error) {
	return r.Update(ctx, id, func(c *models.Claim) error {
		notifications.MarkAllRead(c)
		return nil
	})
}

func (r *Repository) committed(ctx context.Context, c, prev *models.Claim) {
	for _, o := range r.observers {
		o.ClaimSaved(ctx, c.Clone())
	}
	if len(r.sinks) == 0 {
		return
	}
	start := 0
	if prev != nil {
		start = len(prev.Notifications)
	}
	for _, n := range c.Notifications[start:] {
		for _, s := range r.sinks {
			s.Deliver(ctx, c.Clone(), n)
		}
	}
}

// checkMutation rejects writes that would break claim invariants.
func checkMutation(prev, next *models.Claim) error {
	if next.ID != prev.ID {
		return apperrors.NewValidationFailedError("id", "claim id is immutable")
	}
	if err := sameFacts(prev, next); err != nil {
		return err
	}
	if next.Status != prev.Status {
		if next.Status.Rank() < prev.Status.Rank() {
			return apperrors.NewInvalidTransitionError(string(prev.Status), string(next.Status))
		}
		if !prev.Status.CanAdvanceTo(next.Status) {
			return apperrors.NewInvalidTransitionError(string(prev.Status), string(next.Status))
		}
	}
	if next.Routing != nil && next.Scores == nil {
		return apperrors.NewValidationFailedError("routing", "routing requires scores")
	}
	if next.Status.Rank() >= models.StatusTriage.Rank() && next.Routing == nil {
		return apperrors.NewInvalidTransitionError(string(prev.Status), string(next.Status)).
			WithMetadata("reason", "claim has no routing recommendation")
	}
	if next.Status.Rank() >= models.StatusAssigned.Rank() && next.AssignedAdjuster == "" {
		return apperrors.NewInvalidTransitionError(string(prev.Status), string(next.Status)).
			WithMetadata("reason", "claim has no assigned adjuster")
	}
	if next.Scores != nil {
		if err := CheckScoreBounds(*next.Scores); err != nil {
			return err
		}
	}
	return notifications.VerifyAppendOnly(prev.Notifications, next.Notifications)
}

func sameFacts(prev, next *models.Claim) error {
	switch {
	case prev.PolicyNumber != next.PolicyNumber,
		prev.CustomerName != next.CustomerName,
		prev.CustomerEmail != next.CustomerEmail,
		prev.CustomerPhone != next.CustomerPhone,
		prev.Vehicle != next.Vehicle,
		prev.AccidentType != next.AccidentType,
		!prev.AccidentDate.Equal(next.AccidentDate),
		prev.AccidentLocation != next.AccidentLocation,
		prev.AccidentDetails != next.AccidentDetails,
		prev.Description != next.Description,
		prev.AdditionalInfo != next.AdditionalInfo,
		len(prev.Photos) != len(next.Photos),
		!prev.CreatedAt.Equal(next.CreatedAt):
		return apperrors.NewValidationFailedError("claim", "claim facts are immutable after finalization")
	}
	for i := range prev.Photos {
		if prev.Photos[i].ID != next.Photos[i].ID {
			return apperrors.NewValidationFailedError("photos", "claim photos are immutable after finalization")
		}
	}
	return nil
}

// CheckScoreBounds verifies every score lies in its range.
func CheckScoreBounds(s models.ClaimScores) error {
	check := func(name string, v, lo, hi int) error {
		if v < lo || v > hi {
			return apperrors.NewValidationFailedError("scores", fmt.Sprintf("%s %d outside [%d,%d]", name, v, lo, hi))
		}
		return nil
	}
	for _, err := range []error{
		check("complexity", s.Complexity, 1, 10),
		check("severity", s.Severity, 1, 10),
		check("fraudRisk", s.FraudRisk, 1, 100),
		check("customerValue", s.CustomerValue, 1, 100),
		check("urgency", s.Urgency, 1, 10),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
