package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"claimsflow/internal/claims"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var columns = []string{
	"id", "policy_number", "customer_name", "customer_email", "customer_phone", "vehicle",
	"accident_type", "accident_date", "accident_location", "accident_details", "description", "additional_info",
	"photos", "status", "scores", "routing", "notifications", "assigned_adjuster", "estimated_completion",
	"created_at", "updated_at",
}

func sampleClaim() *models.Claim {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Claim{
		ID:               "01HQCLAIM",
		PolicyNumber:     "POL-123",
		CustomerName:     "Jane Smith",
		CustomerEmail:    "jane@example.com",
		Vehicle:          models.Vehicle{Make: "Honda", Model: "Civic", Year: 2020},
		AccidentType:     models.AccidentCollision,
		AccidentDate:     now,
		AccidentLocation: "Main St",
		Description:      "Rear-ended at a light",
		Photos:           []models.ClaimPhoto{},
		Status:           models.StatusFNOLComplete,
		Notifications: []models.ClaimNotification{
			{ID: "n1", Type: models.NotificationStatusUpdate, Message: "submitted", Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ==========================
// Get
// ==========================

func TestGet_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	store := New(db)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(columns).AddRow(
		"01HQCLAIM", "POL-123", "Jane Smith", "jane@example.com", "", []byte(`{"make":"Honda","model":"Civic","year":2020,"vin":"","licensePlate":""}`),
		"theft", now, "Main St", "", "Car stolen overnight", "",
		[]byte(`[]`), "triage", []byte(`{"complexity":6,"severity":3,"fraudRisk":49,"customerValue":70,"urgency":6}`),
		[]byte(`{"adjusterTier":"senior","reason":"moderate","straightThroughEligible":false,"estimatedResolutionDays":14}`),
		[]byte(`[{"id":"n1","timestamp":"2024-03-01T10:00:00Z","type":"status_update","message":"submitted","read":false}]`),
		"", nil, now, now,
	)
	mock.ExpectQuery(`SELECT (.+) FROM claims WHERE id = \$1`).WithArgs("01HQCLAIM").WillReturnRows(rows)

	c, err := store.Get(context.Background(), "01HQCLAIM")
	require.NoError(t, err)

	assert.Equal(t, models.AccidentTheft, c.AccidentType)
	assert.Equal(t, models.StatusTriage, c.Status)
	assert.Equal(t, "Honda", c.Vehicle.Make)
	require.NotNil(t, c.Scores)
	assert.Equal(t, 49, c.Scores.FraudRisk)
	require.NotNil(t, c.Routing)
	assert.Equal(t, models.TierSenior, c.Routing.AdjusterTier)
	assert.Len(t, c.Notifications, 1)
	assert.Nil(t, c.EstimatedCompletion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := New(db)

	mock.ExpectQuery(`SELECT (.+) FROM claims WHERE id = \$1`).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestGet_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	store := New(db)

	mock.ExpectQuery(`SELECT (.+) FROM claims`).WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "x")
	assert.True(t, apperrors.IsDependencyUnavailable(err))
	assert.True(t, apperrors.IsRetryable(err))
}

// ==========================
// Create / Save
// ==========================

func TestCreate_InsertsClaimAndAudit(t *testing.T) {
	db, mock := setupMockDB(t)
	store := New(db)
	c := sampleClaim()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO claims`).
		WithArgs(c.ID, c.PolicyNumber, c.CustomerName, c.CustomerEmail, c.CustomerPhone, sqlmock.AnyArg(),
			"collision", c.AccidentDate, c.AccidentLocation, "", c.Description, "",
			[]byte(`[]`), "fnol_complete", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "",
			sqlmock.AnyArg(), c.CreatedAt, c.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO claim_audit_log`).
		WithArgs(c.ID, "created", "fnol_complete", c.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Create(context.Background(), c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateID(t *testing.T) {
	db, mock := setupMockDB(t)
	store := New(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO claims`).WillReturnError(&pq.Error{Code: uniqueViolation})
	mock.ExpectRollback()

	err := store.Create(context.Background(), sampleClaim())
	assert.True(t, apperrors.IsValidationFailed(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_NoRowUpdated(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		check  func(error) bool
	}{
		{"unknown claim", false, apperrors.IsNotFound},
		{"stale updated_at", true, apperrors.IsConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			store := New(db)
			c := sampleClaim()
			prev := c.UpdatedAt
			c.UpdatedAt = prev.Add(time.Minute)

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE claims (.+) WHERE id = \$1 AND updated_at = \$9`).
				WithArgs(c.ID, "fnol_complete", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg(), c.UpdatedAt, prev).
				WillReturnResult(sqlmock.NewResult(0, 0))
			rows := sqlmock.NewRows([]string{"?column?"})
			if tt.exists {
				rows.AddRow(1)
			}
			mock.ExpectQuery(`SELECT 1 FROM claims WHERE id = \$1`).WithArgs(c.ID).WillReturnRows(rows)
			mock.ExpectRollback()

			err := store.Save(context.Background(), c, prev)
			assert.True(t, tt.check(err), "got %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSave_UpdatesMutableColumns(t *testing.T) {
	db, mock := setupMockDB(t)
	store := New(db)
	c := sampleClaim()
	c.Status = models.StatusTriage
	c.Scores = &models.ClaimScores{Complexity: 2, Severity: 2, FraudRisk: 10, CustomerValue: 60, Urgency: 4}
	c.Routing = &models.RoutingRecommendation{AdjusterTier: models.TierJunior, StraightThroughEligible: true, EstimatedResolutionDays: 5}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE claims`).
		WithArgs(c.ID, "triage", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", sqlmock.AnyArg(), c.UpdatedAt, c.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO claim_audit_log`).
		WithArgs(c.ID, "updated", "triage", c.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Save(context.Background(), c, c.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// List
// ==========================

func TestList_FiltersByStatusAndTier(t *testing.T) {
	db, mock := setupMockDB(t)
	store := New(db)

	mock.ExpectQuery(`SELECT (.+) FROM claims WHERE status = \$1 AND routing->>'adjusterTier' = \$2 ORDER BY created_at DESC, id DESC LIMIT \$3`).
		WithArgs("triage", "siu", 10).
		WillReturnRows(sqlmock.NewRows(columns))

	out, err := store.List(context.Background(), claims.Filter{Status: models.StatusTriage, Tier: models.TierSIU, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
