// Package intake runs the FNOL conversation that collects claim facts and
// hands exactly one claim to the repository when the session finalizes.
package intake

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"claimsflow/internal/claims"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/common/metrics"
	"claimsflow/internal/models"
	"claimsflow/internal/notifications"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// PolicyLookup resolves a policy number to its holder and vehicle.
type PolicyLookup interface {
	LookupPolicy(ctx context.Context, number string) (*models.PolicyRecord, error)
}

// Enricher returns an advisory line about conditions at a location.
type Enricher interface {
	Enrich(ctx context.Context, location string, at time.Time) (string, error)
}

// ClaimCreator persists a finalized claim.
type ClaimCreator interface {
	Create(ctx context.Context, c *models.Claim) (*models.Claim, error)
	Get(ctx context.Context, id string) (*models.Claim, error)
}

type Engine struct {
	sessions SessionStore
	policies PolicyLookup
	claims   ClaimCreator
	enricher Enricher
	locks    *claims.KeyedMutex
	logger   logger.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Engine)

// WithEnricher enables location enrichment.
func WithEnricher(e Enricher) Option {
	return func(en *Engine) { en.enricher = e }
}

func WithClock(now func() time.Time) Option {
	return func(en *Engine) { en.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(en *Engine) { en.newID = newID }
}

func NewEngine(sessions SessionStore, policies PolicyLookup, creator ClaimCreator, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		sessions: sessions,
		policies: policies,
		claims:   creator,
		locks:    claims.NewKeyedMutex(),
		logger:   log.WithFields(map[string]interface{}{"component": "intake"}),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartSession opens a session, greets the user and moves to policy
// verification.
func (e *Engine) StartSession(ctx context.Context) (*models.FNOLSession, error) {
	now := e.now().UTC()
	s := &models.FNOLSession{
		ID:           e.newID(),
		Messages:     []models.ChatMessage{},
		CurrentStep:  models.StepGreeting,
		CreatedAt:    now,
		LastActivity: now,
	}

	out, err := Transition(models.StepGreeting, StepInput{Step: models.StepGreeting}, s.Draft, now)
	if err != nil {
		return nil, err
	}
	e.apply(s, out, now)

	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	e.logger.Info("intake session started", map[string]interface{}{"sessionId": s.ID})
	return s.Clone(), nil
}

func (e *Engine) GetSession(ctx context.Context, id string) (*models.FNOLSession, error) {
	return e.sessions.Get(ctx, id)
}

// SubmitStepInput applies one input to the current step. On error the
// stored session is unchanged.
func (e *Engine) SubmitStepInput(ctx context.Context, id string, in StepInput) (*models.FNOLSession, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsComplete {
		return nil, e.reject(s, apperrors.NewInvalidTransitionError(string(s.CurrentStep), string(in.Step)).
			WithMetadata("reason", "session is complete"))
	}
	if in.Step == "" {
		return nil, e.reject(s, apperrors.NewValidationFailedError("step", "step is required"))
	}
	if in.Step != s.CurrentStep {
		return nil, e.reject(s, apperrors.NewInvalidTransitionError(string(s.CurrentStep), string(in.Step)).
			WithMetadata("reason", "input is for a different step"))
	}

	now := e.now().UTC()
	if err := e.prepare(ctx, s, &in, now); err != nil {
		return nil, e.reject(s, err)
	}

	out, err := Transition(s.CurrentStep, in, s.Draft, now)
	if err != nil {
		return nil, e.reject(s, err)
	}

	from := s.CurrentStep
	e.apply(s, out, now)
	metrics.IntakeTransitions.WithLabelValues(string(from)).Inc()

	if out.Finalize {
		if _, err := e.finalizeLocked(ctx, s, now); err != nil {
			return nil, err
		}
		return s.Clone(), nil
	}

	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	e.logger.Debug("intake step accepted", map[string]interface{}{
		"sessionId": s.ID,
		"from":      from,
		"to":        s.CurrentStep,
	})
	return s.Clone(), nil
}

// SelectAccidentType answers the accident type step.
func (e *Engine) SelectAccidentType(ctx context.Context, id string, t models.AccidentType) (*models.FNOLSession, error) {
	return e.SubmitStepInput(ctx, id, StepInput{Step: models.StepAccidentType, AccidentType: t})
}

// UploadPhotos answers the photo step. An empty list skips photos.
func (e *Engine) UploadPhotos(ctx context.Context, id string, photos []models.ClaimPhoto) (*models.FNOLSession, error) {
	return e.SubmitStepInput(ctx, id, StepInput{Step: models.StepPhotoUpload, Photos: photos})
}

// Finalize builds and persists the claim from whatever the session has
// collected. A completed session returns nil, nil.
func (e *Engine) Finalize(ctx context.Context, id string) (*models.Claim, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	s, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.IsComplete {
		return nil, nil
	}
	return e.finalizeLocked(ctx, s, e.now().UTC())
}

// Abandon discards a session without creating a claim.
func (e *Engine) Abandon(ctx context.Context, id string) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	if err := e.sessions.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("intake session abandoned", map[string]interface{}{"sessionId": id})
	return nil
}

// prepare resolves collaborator data the transition needs.
func (e *Engine) prepare(ctx context.Context, s *models.FNOLSession, in *StepInput, now time.Time) error {
	switch s.CurrentStep {
	case models.StepPolicyVerification:
		if strings.TrimSpace(in.Text) == "" {
			return nil
		}
		rec, err := e.policies.LookupPolicy(ctx, in.Text)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NewValidationFailedError("policyNumber", err.Error())
			}
			if _, ok := apperrors.AsStandardError(err); !ok {
				return apperrors.NewDependencyUnavailableError("policy", err)
			}
			return err
		}
		in.Policy = rec

	case models.StepLocation:
		location := strings.TrimSpace(in.Text)
		if location == "" || e.enricher == nil {
			return nil
		}
		at := now
		if s.Draft.AccidentDate != nil {
			at = *s.Draft.AccidentDate
		}
		advisory, err := e.enricher.Enrich(ctx, location, at)
		if err != nil {
			metrics.IntakeEnrichmentFailures.Inc()
			e.logger.Warn("location enrichment failed", map[string]interface{}{
				"sessionId": s.ID,
				"error":     err.Error(),
			})
			return nil
		}
		in.Advisory = advisory

	case models.StepPhotoUpload:
		photos := make([]models.ClaimPhoto, len(in.Photos))
		for i, p := range in.Photos {
			p = p.Clone()
			if p.ID == "" {
				p.ID = e.newID()
			}
			photos[i] = p
		}
		in.Photos = photos
	}
	return nil
}

// apply appends the outcome to the session, stamping message ids.
func (e *Engine) apply(s *models.FNOLSession, out Outcome, now time.Time) {
	for _, m := range out.Messages {
		m.ID = e.newID()
		s.Messages = append(s.Messages, m)
	}
	s.Draft = out.Draft
	s.CurrentStep = out.Next
	s.LastActivity = now
}

func (e *Engine) finalizeLocked(ctx context.Context, s *models.FNOLSession, now time.Time) (*models.Claim, error) {
	created, err := e.claims.Get(ctx, ClaimIDFor(s))
	switch {
	case err == nil:
		e.logger.Warn("reusing claim from earlier finalize", map[string]interface{}{
			"sessionId": s.ID,
			"claimId":   created.ID,
		})
	case apperrors.IsNotFound(err):
		c, err := BuildClaim(s.Draft, now)
		if err != nil {
			return nil, err
		}
		c.ID = ClaimIDFor(s)
		if created, err = e.claims.Create(ctx, c); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	s.ClaimID = created.ID
	s.IsComplete = true
	s.CurrentStep = models.StepComplete
	s.LastActivity = now
	s.Messages = append(s.Messages, models.ChatMessage{
		ID:        e.newID(),
		Role:      models.RoleAssistant,
		Content:   submittedMessage(created.ID),
		Timestamp: now,
	})

	if err := e.sessions.Save(ctx, s); err != nil {
		e.logger.Error("claim created but session not saved", map[string]interface{}{
			"sessionId": s.ID,
			"claimId":   created.ID,
			"error":     err.Error(),
		})
		return nil, err
	}

	metrics.ClaimsFinalized.WithLabelValues(string(created.AccidentType)).Inc()
	e.logger.Info("intake session finalized", map[string]interface{}{
		"sessionId": s.ID,
		"claimId":   created.ID,
	})
	return created, nil
}

// ClaimIDFor derives the claim id a session finalizes into. A finalize
// retried after a failed session save finds the claim it already created.
func ClaimIDFor(s *models.FNOLSession) string {
	sum := sha256.Sum256([]byte(s.ID))
	return ulid.MustNew(ulid.Timestamp(s.CreatedAt), bytes.NewReader(sum[:])).String()
}

func (e *Engine) reject(s *models.FNOLSession, err error) error {
	code := apperrors.Normalize(err).Code
	metrics.IntakeRejections.WithLabelValues(string(s.CurrentStep), string(code)).Inc()
	e.logger.Debug("intake input rejected", map[string]interface{}{
		"sessionId": s.ID,
		"step":      s.CurrentStep,
		"code":      code,
	})
	return err
}

// BuildClaim turns a draft into a claim, filling documented defaults for
// unset fields.
func BuildClaim(d models.ClaimDraft, now time.Time) (*models.Claim, error) {
	now = now.UTC()
	c := &models.Claim{
		PolicyNumber:     orDefault(d.PolicyNumber, "UNVERIFIED"),
		CustomerName:     orDefault(d.CustomerName, "Unknown"),
		CustomerEmail:    d.CustomerEmail,
		CustomerPhone:    d.CustomerPhone,
		Vehicle:          models.Vehicle{Make: "Unknown", Model: "Unknown"},
		AccidentType:     d.AccidentType,
		AccidentDate:     now,
		AccidentLocation: orDefault(d.AccidentLocation, "Unknown"),
		AccidentDetails:  d.AccidentDetails,
		Description:      d.Description,
		AdditionalInfo:   d.AdditionalInfo,
		Photos:           []models.ClaimPhoto{},
		Status:           models.StatusFNOLComplete,
		CreatedAt:        now,
	}
	if d.Vehicle != nil {
		c.Vehicle = *d.Vehicle
	}
	if c.AccidentType == "" {
		c.AccidentType = models.AccidentCollision
	}
	if d.AccidentDate != nil {
		c.AccidentDate = d.AccidentDate.UTC()
	}
	if strings.TrimSpace(c.Description) == "" {
		c.Description = "No description provided"
	}
	for _, p := range d.Photos {
		c.Photos = append(c.Photos, p.Clone())
	}

	if _, err := notifications.Append(c, models.NotificationStatusUpdate, notifications.MsgClaimSubmitted, now); err != nil {
		return nil, err
	}
	return c, nil
}

func submittedMessage(claimID string) string {
	short := claimID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("Your claim has been successfully submitted!\n\n**Claim ID:** %s\n\nWhat happens next:\n1. Our AI will analyze your claim and calculate priority scores\n2. Your claim will be assigned to the most suitable adjuster\n3. You'll receive updates via email and through our portal\n\nYou can track your claim status anytime through the Claims Portal.",
		strings.ToUpper(short))
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
