package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: claimsflow-test
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "claimsflow-test", cfg.App.Name)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Intake.SessionStore)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout())
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "claims", cfg.Database.Elasticsearch.ClaimIndex)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("CLAIMS_TEST_DB_HOST", "db.internal")
	path := writeConfig(t, `
storage:
  backend: postgres
database:
  postgres:
    host: ${CLAIMS_TEST_DB_HOST}
    database: claims
    user: claims
workers:
  score-claim:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)

	worker := GetWorkerConfig(cfg, "score-claim")
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "postgres without host",
			body: "storage:\n  backend: postgres\n",
			want: "database.postgres.host is required",
		},
		{
			name: "unknown backend",
			body: "storage:\n  backend: sqlite\n",
			want: "storage.backend must be memory or postgres",
		},
		{
			name: "redis sessions without address",
			body: "intake:\n  session_store: redis\n",
			want: "database.redis.address is required",
		},
		{
			name: "camunda without broker",
			body: "camunda:\n  enabled: true\n",
			want: "camunda.broker_address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIsWorkerEnabled_DefaultsToTrue(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"notify-claim": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "notify-claim"))
	assert.True(t, IsWorkerEnabled(cfg, "assign-adjuster"))
}
