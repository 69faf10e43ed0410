// internal/workers/triage/assign-adjuster/handler_test.go
package assignadjuster

import (
	"context"
	"testing"
	"time"

	"claimsflow/internal/claims"
	"claimsflow/internal/claims/memstore"
	"claimsflow/internal/common/config"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/common/observability"
	"claimsflow/internal/models"
	"claimsflow/internal/triage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*Handler, *triage.Service, *claims.Repository) {
	t.Helper()
	log := logger.NewTestLogger(t)
	repo := claims.NewRepository(memstore.New(), log, claims.WithClock(func() time.Time { return fixedNow }))
	svc := triage.NewService(repo, triage.NewSource(3), observability.NewNoop(), log)
	return NewHandler(LoadConfig(config.WorkerConfig{}), svc, log), svc, repo
}

func triagedClaim(t *testing.T, svc *triage.Service, repo *claims.Repository, typ models.AccidentType) *models.Claim {
	t.Helper()
	c, err := repo.Create(context.Background(), &models.Claim{
		PolicyNumber: "POL-2024-001",
		AccidentType: typ,
		AccidentDate: fixedNow.Add(-48 * time.Hour),
		Description:  "stolen overnight",
	})
	require.NoError(t, err)
	c, err = svc.Triage(context.Background(), c.ID)
	require.NoError(t, err)
	return c
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_AssignsRoutedTier(t *testing.T) {
	h, svc, repo := setup(t)
	c := triagedClaim(t, svc, repo, models.AccidentTheft)
	require.Equal(t, models.TierSIU, c.Routing.AdjusterTier)

	output, err := h.Execute(context.Background(), &Input{ClaimID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, "James Rodriguez (SIU)", output.AssignedAdjuster)
	assert.Equal(t, models.TierSIU, output.AdjusterTier)
	assert.Equal(t, models.StatusAssigned, output.Status)
	assert.Equal(t, fixedNow.AddDate(0, 0, 30), output.EstimatedCompletion)

	stored, err := repo.Get(context.Background(), c.ID)
	require.NoError(t, err)
	last := stored.Notifications[len(stored.Notifications)-1]
	assert.Equal(t, models.NotificationAssignment, last.Type)
	assert.Equal(t, "Your claim has been assigned to James Rodriguez (SIU).", last.Message)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_RequiresTriage(t *testing.T) {
	h, _, repo := setup(t)
	c, err := repo.Create(context.Background(), &models.Claim{AccidentType: models.AccidentCollision})
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), &Input{ClaimID: c.ID})
	assert.True(t, apperrors.IsInvalidTransition(err))

	_, err = h.Execute(context.Background(), &Input{})
	assert.True(t, apperrors.IsValidationFailed(err))
}

func TestHandler_Execute_AssignOnlyOnce(t *testing.T) {
	h, svc, repo := setup(t)
	c := triagedClaim(t, svc, repo, models.AccidentTheft)

	_, err := h.Execute(context.Background(), &Input{ClaimID: c.ID})
	require.NoError(t, err)
	_, err = h.Execute(context.Background(), &Input{ClaimID: c.ID})
	assert.True(t, apperrors.IsInvalidTransition(err))
}
