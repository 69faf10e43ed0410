package enrichment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"claimsflow/internal/common/config"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.EnrichmentConfig{Enabled: true, BaseURL: srv.URL + "/", APIKey: "secret", Timeout: 500}, logger.NewTestLogger(t))
}

func TestEnrich_FormatsConditions(t *testing.T) {
	at := time.Date(2024, 4, 9, 17, 30, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/conditions", r.URL.Path)
		assert.Equal(t, "Main St & 5th Ave", r.URL.Query().Get("location"))
		assert.Equal(t, "2024-04-09T17:30:00Z", r.URL.Query().Get("at"))
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"weather":"Clear skies, 72°F","traffic":"No traffic incidents reported in area."}`))
	})

	msg, err := client.Enrich(context.Background(), "Main St & 5th Ave", at)
	require.NoError(t, err)
	assert.Equal(t, "Location identified: Main St & 5th Ave. Weather conditions at time of incident: Clear skies, 72°F. No traffic incidents reported in area.", msg)
}

func TestEnrich_FailureIsDependencyUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Enrich(context.Background(), "anywhere", time.Now())
	assert.True(t, apperrors.IsDependencyUnavailable(err))
}

func TestAdvisory(t *testing.T) {
	assert.Equal(t, "Location identified: Elm St. Heavy rain.", Advisory("Elm St", "Heavy rain.", "ignored", ""))
	assert.Equal(t, "Location identified: Elm St.", Advisory("Elm St", "", "", ""))
}
