package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"claimsflow/internal/claims"
	"claimsflow/internal/claims/memstore"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/models"
	"claimsflow/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type stubEnricher struct {
	advisory string
	err      error
	calls    int32
}

func (s *stubEnricher) Enrich(_ context.Context, location string, _ time.Time) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return "", s.err
	}
	return s.advisory + " " + location, nil
}

type failingPolicies struct{}

func (failingPolicies) LookupPolicy(context.Context, string) (*models.PolicyRecord, error) {
	return nil, apperrors.NewDependencyUnavailableError("postgres", errors.New("connection refused"))
}

type failingCreator struct{}

func (failingCreator) Create(context.Context, *models.Claim) (*models.Claim, error) {
	return nil, apperrors.NewDependencyUnavailableError("postgres", errors.New("down"))
}

func (failingCreator) Get(_ context.Context, id string) (*models.Claim, error) {
	return nil, apperrors.NewNotFoundError("claim", id)
}

// flakySessions fails the next Save once armed.
type flakySessions struct {
	*MemoryStore
	armed atomic.Bool
}

func (f *flakySessions) Save(ctx context.Context, s *models.FNOLSession) error {
	if f.armed.CompareAndSwap(true, false) {
		return apperrors.NewDependencyUnavailableError("redis", errors.New("down"))
	}
	return f.MemoryStore.Save(ctx, s)
}

type fixture struct {
	engine   *Engine
	repo     *claims.Repository
	sessions *MemoryStore
	enricher *stubEnricher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)
	repo := claims.NewRepository(memstore.New(), log)
	sessions := NewMemoryStore(30 * time.Minute)
	policies := policy.NewStatic(models.PolicyRecord{
		PolicyNumber:  "POL-2024-001",
		CustomerName:  "Jane Smith",
		CustomerEmail: "jane@example.com",
		Vehicle:       models.Vehicle{Make: "Toyota", Model: "Camry", Year: 2022},
		Active:        true,
	})
	enricher := &stubEnricher{advisory: "Clear skies near"}

	var n int64
	opts = append([]Option{
		WithEnricher(enricher),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&n, 1)) }),
	}, opts...)

	return &fixture{
		engine:   NewEngine(sessions, policies, repo, log, opts...),
		repo:     repo,
		sessions: sessions,
		enricher: enricher,
	}
}

func submit(t *testing.T, e *Engine, id string, step models.FNOLStep, text string) *models.FNOLSession {
	t.Helper()
	s, err := e.SubmitStepInput(context.Background(), id, StepInput{Step: step, Text: text})
	require.NoError(t, err)
	return s
}

// ==========================
// Happy path
// ==========================

func TestEngine_FullIntake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.engine.StartSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StepPolicyVerification, s.CurrentStep)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, models.RoleAssistant, s.Messages[0].Role)

	s = submit(t, f.engine, s.ID, models.StepPolicyVerification, "pol-2024-001")
	assert.Equal(t, "Jane Smith", s.Draft.CustomerName)

	s, err = f.engine.SelectAccidentType(ctx, s.ID, models.AccidentCollision)
	require.NoError(t, err)
	s = submit(t, f.engine, s.ID, models.StepAccidentDetails, "2024-05-01 08:15 at the light")
	s = submit(t, f.engine, s.ID, models.StepLocation, "Main St & 5th Ave")
	assert.Equal(t, int32(1), f.enricher.calls)
	s = submit(t, f.engine, s.ID, models.StepDamageDescription, "Rear bumper crushed and trunk will not close after the impact.")

	s, err = f.engine.UploadPhotos(ctx, s.ID, []models.ClaimPhoto{
		{URL: "s3://claims/rear.jpg", Category: models.PhotoRear},
		{URL: "s3://claims/damage.jpg", Category: models.PhotoDamage},
	})
	require.NoError(t, err)
	require.Len(t, s.Draft.Photos, 2)
	assert.NotEmpty(t, s.Draft.Photos[0].ID)

	s = submit(t, f.engine, s.ID, models.StepAdditionalInfo, "none")
	assert.Equal(t, models.StepReview, s.CurrentStep)

	s = submit(t, f.engine, s.ID, models.StepReview, "yes")
	assert.True(t, s.IsComplete)
	assert.Equal(t, models.StepComplete, s.CurrentStep)
	require.NotEmpty(t, s.ClaimID)

	ids := map[string]bool{}
	for _, m := range s.Messages {
		assert.False(t, ids[m.ID], "duplicate message id %s", m.ID)
		ids[m.ID] = true
	}

	c, err := f.repo.Get(ctx, s.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, "POL-2024-001", c.PolicyNumber)
	assert.Equal(t, models.AccidentCollision, c.AccidentType)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 15, 0, 0, time.UTC), c.AccidentDate)
	assert.Equal(t, "Main St & 5th Ave", c.AccidentLocation)
	assert.Len(t, c.Photos, 2)
	assert.Equal(t, models.StatusFNOLComplete, c.Status)
	require.Len(t, c.Notifications, 1)
	assert.Nil(t, c.Scores)

	again, err := f.engine.Finalize(ctx, s.ID)
	assert.NoError(t, err)
	assert.Nil(t, again, "second finalize is a no-op")

	all, err := f.repo.List(ctx, claims.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// ==========================
// Guards
// ==========================

func TestEngine_WrongStepLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.engine.StartSession(ctx)
	require.NoError(t, err)

	_, err = f.engine.SubmitStepInput(ctx, s.ID, StepInput{Step: models.StepLocation, Text: "Main St"})
	assert.True(t, apperrors.IsInvalidTransition(err))

	_, err = f.engine.SubmitStepInput(ctx, s.ID, StepInput{Text: "POL-2024-001"})
	assert.True(t, apperrors.IsValidationFailed(err))

	got, err := f.engine.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestEngine_UnknownPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.engine.StartSession(ctx)
	require.NoError(t, err)

	_, err = f.engine.SubmitStepInput(ctx, s.ID, StepInput{Step: models.StepPolicyVerification, Text: "POL-NOPE"})
	assert.True(t, apperrors.IsValidationFailed(err))

	got, err := f.engine.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StepPolicyVerification, got.CurrentStep)
}

func TestEngine_PolicyLookupDown(t *testing.T) {
	log := logger.NewTestLogger(t)
	e := NewEngine(NewMemoryStore(0), failingPolicies{}, claims.NewRepository(memstore.New(), log), log)
	ctx := context.Background()
	s, err := e.StartSession(ctx)
	require.NoError(t, err)

	_, err = e.SubmitStepInput(ctx, s.ID, StepInput{Step: models.StepPolicyVerification, Text: "POL-1"})
	assert.True(t, apperrors.IsDependencyUnavailable(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestEngine_EnrichmentFailureIsSilent(t *testing.T) {
	f := newFixture(t)
	f.enricher.err = errors.New("timeout")
	ctx := context.Background()

	s, err := f.engine.StartSession(ctx)
	require.NoError(t, err)
	s = submit(t, f.engine, s.ID, models.StepPolicyVerification, "POL-2024-001")
	s, err = f.engine.SelectAccidentType(ctx, s.ID, models.AccidentVandalism)
	require.NoError(t, err)
	s = submit(t, f.engine, s.ID, models.StepAccidentDetails, "last night")
	before := len(s.Messages)
	s = submit(t, f.engine, s.ID, models.StepLocation, "Parking garage")

	assert.Equal(t, models.StepDamageDescription, s.CurrentStep)
	for _, m := range s.Messages[before:] {
		assert.NotEqual(t, models.RoleSystem, m.Role)
	}
}

func TestEngine_FinalizeEarlyUsesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.engine.StartSession(ctx)
	require.NoError(t, err)

	c, err := f.engine.Finalize(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "UNVERIFIED", c.PolicyNumber)
	assert.Equal(t, "No description provided", c.Description)

	got, err := f.engine.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsComplete)
	assert.Equal(t, c.ID, got.ClaimID)

	_, err = f.engine.SubmitStepInput(ctx, s.ID, StepInput{Step: models.StepPolicyVerification, Text: "POL-1"})
	assert.True(t, apperrors.IsInvalidTransition(err))
}

func TestEngine_FailedClaimCreateKeepsSessionOpen(t *testing.T) {
	log := logger.NewTestLogger(t)
	sessions := NewMemoryStore(0)
	e := NewEngine(sessions, policy.NewStatic(), failingCreator{}, log)
	ctx := context.Background()

	s, err := e.StartSession(ctx)
	require.NoError(t, err)
	_, err = e.Finalize(ctx, s.ID)
	assert.True(t, apperrors.IsDependencyUnavailable(err))

	got, err := e.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.IsComplete)
	assert.Empty(t, got.ClaimID)
}

func TestEngine_FinalizeRetryAfterSessionSaveFailure(t *testing.T) {
	log := logger.NewTestLogger(t)
	repo := claims.NewRepository(memstore.New(), log)
	sessions := &flakySessions{MemoryStore: NewMemoryStore(0)}
	e := NewEngine(sessions, policy.NewStatic(), repo, log)
	ctx := context.Background()

	s, err := e.StartSession(ctx)
	require.NoError(t, err)

	sessions.armed.Store(true)
	_, err = e.Finalize(ctx, s.ID)
	require.True(t, apperrors.IsDependencyUnavailable(err))

	got, err := e.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.IsComplete)

	c, err := e.Finalize(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, ClaimIDFor(s), c.ID)

	all, err := repo.List(ctx, claims.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got, err = e.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.IsComplete)
	assert.Equal(t, c.ID, got.ClaimID)
}

func TestClaimIDFor(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	a := &models.FNOLSession{ID: "a", CreatedAt: at}
	b := &models.FNOLSession{ID: "b", CreatedAt: at}

	assert.Equal(t, ClaimIDFor(a), ClaimIDFor(&models.FNOLSession{ID: "a", CreatedAt: at}))
	assert.NotEqual(t, ClaimIDFor(a), ClaimIDFor(b))
	assert.Len(t, ClaimIDFor(a), 26)
}

func TestEngine_ConcurrentFinalizeCreatesOneClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.engine.StartSession(ctx)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		created int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := f.engine.Finalize(ctx, s.ID)
			assert.NoError(t, err)
			if c != nil {
				atomic.AddInt32(&created, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	all, err := f.repo.List(ctx, claims.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEngine_Abandon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.engine.StartSession(ctx)
	require.NoError(t, err)

	require.NoError(t, f.engine.Abandon(ctx, s.ID))
	_, err = f.engine.GetSession(ctx, s.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(f.engine.Abandon(ctx, s.ID)))
}
