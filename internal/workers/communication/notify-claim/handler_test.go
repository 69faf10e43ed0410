// internal/workers/communication/notify-claim/handler_test.go
package notifyclaim

import (
	"context"
	"strings"
	"sync"
	"testing"

	"claimsflow/internal/claims"
	"claimsflow/internal/claims/memstore"
	"claimsflow/internal/common/config"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingSink struct {
	mu        sync.Mutex
	delivered []models.ClaimNotification
}

func (s *recordingSink) Deliver(_ context.Context, _ *models.Claim, n models.ClaimNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, n)
}

func setup(t *testing.T) (*Handler, *claims.Repository, *recordingSink) {
	t.Helper()
	log := logger.NewTestLogger(t)
	sink := &recordingSink{}
	repo := claims.NewRepository(memstore.New(), log, claims.WithNotificationSink(sink))
	return NewHandler(LoadConfig(config.WorkerConfig{}), repo, log), repo, sink
}

func createClaim(t *testing.T, repo *claims.Repository) *models.Claim {
	t.Helper()
	c, err := repo.Create(context.Background(), &models.Claim{
		PolicyNumber:  "POL-2024-001",
		CustomerEmail: "jane@example.com",
		AccidentType:  models.AccidentCollision,
	})
	require.NoError(t, err)
	return c
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_AppendsNotification(t *testing.T) {
	h, repo, sink := setup(t)
	c := createClaim(t, repo)

	output, err := h.Execute(context.Background(), &Input{
		ClaimID: c.ID,
		Type:    models.NotificationDocumentRequest,
		Message: "Please upload a copy of the police report.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, output.NotificationID)
	assert.False(t, output.NotifiedAt.IsZero())

	list, unread, err := repo.Notifications(context.Background(), c.ID, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, unread)
	assert.Equal(t, output.NotificationID, list[0].ID)
	assert.Equal(t, models.NotificationDocumentRequest, list[0].Type)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.delivered, 1)
	assert.Equal(t, output.NotificationID, sink.delivered[0].ID)
}

// ==========================
// Input Validation Tests
// ==========================

func TestHandler_Execute_InvalidInput(t *testing.T) {
	h, repo, sink := setup(t)
	c := createClaim(t, repo)

	tests := []struct {
		name  string
		input *Input
		check func(error) bool
	}{
		{"missing claim id", &Input{Type: models.NotificationPayment, Message: "paid"}, apperrors.IsValidationFailed},
		{"unknown type", &Input{ClaimID: c.ID, Type: "fax", Message: "hello"}, apperrors.IsValidationFailed},
		{"empty message", &Input{ClaimID: c.ID, Type: models.NotificationPayment}, apperrors.IsValidationFailed},
		{"message too long", &Input{ClaimID: c.ID, Type: models.NotificationPayment, Message: strings.Repeat("x", 2001)}, apperrors.IsValidationFailed},
		{"unknown claim", &Input{ClaimID: "missing", Type: models.NotificationPayment, Message: "paid"}, apperrors.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}

	list, _, err := repo.Notifications(context.Background(), c.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, sink.delivered)
}
