package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"claimsflow/internal/claims"
	"claimsflow/internal/claims/memstore"
	"claimsflow/internal/claims/search"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"
	"claimsflow/internal/common/observability"
	"claimsflow/internal/intake"
	"claimsflow/internal/models"
	"claimsflow/internal/policy"
	"claimsflow/internal/triage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type testEnv struct {
	repo    *claims.Repository
	handler http.Handler
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	log := logger.NewTestLogger(t)
	repo := claims.NewRepository(memstore.New(), log)
	policies := policy.NewStatic(models.PolicyRecord{
		PolicyNumber:  "POL-2024-001",
		CustomerName:  "Jane Smith",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "+15555550123",
		Vehicle:       models.Vehicle{Make: "Honda", Model: "Civic", Year: 2021},
		Active:        true,
	})
	engine := intake.NewEngine(intake.NewMemoryStore(time.Hour), policies, repo, log)
	svc := triage.NewService(repo, triage.NewSource(42), observability.NewNoop(), log)

	return &testEnv{
		repo:    repo,
		handler: New(log, engine, repo, svc, opts...).Router(),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorCode {
	t.Helper()
	var body struct {
		Error apperrors.StandardError `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error.Code
}

func (e *testEnv) finalizedClaim(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var s models.FNOLSession
	decodeBody(t, rec, &s)

	rec = e.do(t, http.MethodPost, "/api/v1/sessions/"+s.ID+"/finalize", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var out finalizeResponse
	decodeBody(t, rec, &out)
	return out.ClaimID
}

// ==========================
// Health
// ==========================

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t,
		WithReadinessCheck("store", func(context.Context) error { return nil }),
		WithReadinessCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", nil).Code)

	rec := env.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Ready  bool              `json:"ready"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, rec, &body)
	assert.False(t, body.Ready)
	assert.Equal(t, "ok", body.Checks["store"])
	assert.Equal(t, "connection refused", body.Checks["redis"])

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/metrics", nil).Code)
}

// ==========================
// End-to-end flow
// ==========================

func TestIntakeTriageAssignFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var s models.FNOLSession
	decodeBody(t, rec, &s)
	base := "/api/v1/sessions/" + s.ID

	steps := []struct {
		path string
		body interface{}
	}{
		{"/input", map[string]string{"step": "policy_verification", "text": "pol-2024-001"}},
		{"/accident-type", map[string]string{"accidentType": "collision"}},
		{"/input", map[string]string{"step": "accident_details", "text": "2024-05-01 08:15 rear-ended at a red light"}},
		{"/input", map[string]string{"step": "location", "text": "Main St & 5th Ave"}},
		{"/input", map[string]string{"step": "damage_description", "text": "Rear bumper crushed and the trunk lid no longer closes properly."}},
		{"/photos", map[string]interface{}{"photos": []map[string]string{
			{"url": "s3://claims/rear.jpg", "category": "rear"},
			{"url": "s3://claims/damage.jpg", "category": "damage"},
		}}},
		{"/input", map[string]string{"step": "additional_info", "text": "none"}},
		{"/input", map[string]string{"step": "review", "text": "yes"}},
	}
	for _, st := range steps {
		rec = env.do(t, http.MethodPost, base+st.path, st.body)
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", st.path, rec.Body.String())
	}
	decodeBody(t, rec, &s)
	require.True(t, s.IsComplete)
	require.NotEmpty(t, s.ClaimID)
	claimPath := "/api/v1/claims/" + s.ClaimID

	rec = env.do(t, http.MethodPost, base+"/finalize", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fin finalizeResponse
	decodeBody(t, rec, &fin)
	assert.False(t, fin.Created)
	assert.Equal(t, s.ClaimID, fin.ClaimID)

	rec = env.do(t, http.MethodPost, claimPath+"/routing", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "routing requires scores")

	rec = env.do(t, http.MethodPost, claimPath+"/scores", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var scores models.ClaimScores
	decodeBody(t, rec, &scores)

	rec = env.do(t, http.MethodPost, claimPath+"/scores", nil)
	var again models.ClaimScores
	decodeBody(t, rec, &again)
	assert.Equal(t, scores, again)

	forged := scores
	forged.FraudRisk = 100
	rec = env.do(t, http.MethodPost, claimPath+"/routing", routingRequest{Scores: &forged})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, claimPath+"/routing", routingRequest{Scores: &scores})
	require.Equal(t, http.StatusOK, rec.Code)
	var routing models.RoutingRecommendation
	decodeBody(t, rec, &routing)
	assert.Equal(t, triage.Route(scores), routing)

	rec = env.do(t, http.MethodPost, claimPath+"/routing", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperrors.ErrCodeInvalidTransition, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, claimPath+"/assign", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var assigned models.Claim
	decodeBody(t, rec, &assigned)
	wantAdjuster, err := triage.AdjusterFor(routing.AdjusterTier)
	require.NoError(t, err)
	assert.Equal(t, wantAdjuster, assigned.AssignedAdjuster)
	assert.Equal(t, models.StatusAssigned, assigned.Status)
	require.NotNil(t, assigned.EstimatedCompletion)

	rec = env.do(t, http.MethodGet, claimPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		models.Claim
		Insights []string `json:"insights"`
	}
	decodeBody(t, rec, &view)
	assert.Equal(t, "Jane Smith", view.CustomerName)
	assert.Len(t, view.Photos, 2)
	assert.NotEmpty(t, view.Insights)

	rec = env.do(t, http.MethodGet, claimPath+"/notifications?read=false", nil)
	var notes notificationListResponse
	decodeBody(t, rec, &notes)
	require.Len(t, notes.Notifications, 3)
	assert.Equal(t, 3, notes.Unread)
	assert.Equal(t, models.NotificationAssignment, notes.Notifications[2].Type)

	rec = env.do(t, http.MethodPost, claimPath+"/notifications/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, claimPath+"/notifications?read=false", nil)
	decodeBody(t, rec, &notes)
	assert.Empty(t, notes.Notifications)
	assert.Zero(t, notes.Unread)

	rec = env.do(t, http.MethodPatch, claimPath, map[string]string{"status": "investigation"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPatch, claimPath, map[string]string{"status": "closed"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodPatch, claimPath, map[string]string{"status": "triage"})
	assert.Equal(t, http.StatusConflict, rec.Code, "status never rewinds")
}

// ==========================
// Error mapping
// ==========================

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	var s models.FNOLSession
	decodeBody(t, rec, &s)
	base := "/api/v1/sessions/" + s.ID
	claimID := env.finalizedClaim(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   apperrors.ErrorCode
	}{
		{"unknown session", http.MethodGet, "/api/v1/sessions/nope", nil, http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"unknown claim", http.MethodGet, "/api/v1/claims/nope", nil, http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"malformed json", http.MethodPost, base + "/input", `{"step":`, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"missing step", http.MethodPost, base + "/input", map[string]string{"text": "POL-2024-001"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"wrong step", http.MethodPost, base + "/input", map[string]string{"step": "location", "text": "x"}, http.StatusConflict, apperrors.ErrCodeInvalidTransition},
		{"unknown accident type", http.MethodPost, base + "/accident-type", map[string]string{"accidentType": "meteor"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"unknown policy", http.MethodPost, base + "/input", map[string]string{"step": "policy_verification", "text": "POL-0000"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"bad photo category", http.MethodPost, base + "/photos", map[string]interface{}{"photos": []map[string]string{{"url": "u", "category": "roof"}}}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"empty patch", http.MethodPatch, "/api/v1/claims/" + claimID, map[string]string{}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"patch unknown field", http.MethodPatch, "/api/v1/claims/" + claimID, map[string]string{"policyNumber": "X"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"patch unknown status", http.MethodPatch, "/api/v1/claims/" + claimID, map[string]string{"status": "lost"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"patch into assigned", http.MethodPatch, "/api/v1/claims/" + claimID, map[string]string{"status": "assigned", "assignedAdjuster": "Bob"}, http.StatusConflict, apperrors.ErrCodeInvalidTransition},
		{"patch adjuster before assignment", http.MethodPatch, "/api/v1/claims/" + claimID, map[string]string{"assignedAdjuster": "Bob"}, http.StatusConflict, apperrors.ErrCodeInvalidTransition},
		{"assign before triage", http.MethodPost, "/api/v1/claims/" + claimID + "/assign", nil, http.StatusConflict, apperrors.ErrCodeInvalidTransition},
		{"bad notification type", http.MethodPost, "/api/v1/claims/" + claimID + "/notifications", map[string]string{"type": "fax", "message": "hi"}, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"bad read filter", http.MethodGet, "/api/v1/claims/" + claimID + "/notifications?read=maybe", nil, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
		{"bad list filter", http.MethodGet, "/api/v1/claims?status=lost", nil, http.StatusBadRequest, apperrors.ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}

	rec = env.do(t, http.MethodGet, base, nil)
	decodeBody(t, rec, &s)
	assert.Equal(t, models.StepPolicyVerification, s.CurrentStep, "rejected inputs leave the session untouched")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(apperrors.ErrCodeDependencyUnavailable))
	assert.Equal(t, http.StatusConflict, statusFor(apperrors.ErrCodeConflict))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperrors.ErrCodeInternal))
}

func TestDependencyUnavailableSetsRetryAfter(t *testing.T) {
	a := &API{logger: logger.NewTestLogger(t)}
	rec := httptest.NewRecorder()
	a.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperrors.NewDependencyUnavailableError("postgres", errors.New("down")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, apperrors.ErrCodeDependencyUnavailable, errorCode(t, rec))
}

// ==========================
// Notifications and listing
// ==========================

func TestAddNotification(t *testing.T) {
	env := newTestEnv(t)
	id := env.finalizedClaim(t)

	rec := env.do(t, http.MethodPost, "/api/v1/claims/"+id+"/notifications",
		map[string]string{"type": "document_request", "message": "Please upload the police report."})
	require.Equal(t, http.StatusCreated, rec.Code)
	var n models.ClaimNotification
	decodeBody(t, rec, &n)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Read)

	rec = env.do(t, http.MethodGet, "/api/v1/claims/"+id+"/notifications", nil)
	var list notificationListResponse
	decodeBody(t, rec, &list)
	require.Len(t, list.Notifications, 2)
	assert.Equal(t, n.ID, list.Notifications[1].ID, "creation order")
}

type stubSearcher struct {
	result *search.Result
}

func (s stubSearcher) Search(context.Context, claims.Filter) (*search.Result, error) {
	return s.result, nil
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, claims.Filter) (*search.Result, error) {
	return nil, apperrors.NewDependencyUnavailableError("elasticsearch", errors.New("connection refused"))
}

func TestListClaims_Sources(t *testing.T) {
	t.Run("store", func(t *testing.T) {
		env := newTestEnv(t)
		env.finalizedClaim(t)
		env.finalizedClaim(t)

		var out claimListResponse
		decodeBody(t, env.do(t, http.MethodGet, "/api/v1/claims?status=fnol_complete", nil), &out)
		assert.Equal(t, "store", out.Source)
		assert.Equal(t, 2, out.Total)

		decodeBody(t, env.do(t, http.MethodGet, "/api/v1/claims?status=assigned", nil), &out)
		assert.Zero(t, out.Total)
	})

	t.Run("search", func(t *testing.T) {
		env := newTestEnv(t, WithSearcher(stubSearcher{result: &search.Result{
			Total:     1,
			Documents: []search.Document{{ID: "01HSEARCH", Status: "triage", AdjusterTier: "senior"}},
		}}))

		var out claimListResponse
		decodeBody(t, env.do(t, http.MethodGet, "/api/v1/claims?tier=senior", nil), &out)
		assert.Equal(t, "search", out.Source)
		require.Len(t, out.Claims, 1)
		assert.Equal(t, "01HSEARCH", out.Claims[0].ID)
	})

	t.Run("search down falls back to store", func(t *testing.T) {
		env := newTestEnv(t, WithSearcher(failingSearcher{}))
		env.finalizedClaim(t)

		var out claimListResponse
		decodeBody(t, env.do(t, http.MethodGet, "/api/v1/claims", nil), &out)
		assert.Equal(t, "store", out.Source)
		assert.Equal(t, 1, out.Total)
	})
}
