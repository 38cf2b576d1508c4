package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: ${TEST_DB_HOST}
    database: admissions
    user: lifecycle
  redis:
    address: localhost:6379
workers:
  application-decide:
    enabled: true
authz:
  role_permissions:
    viewer: ["/dashboard/reports"]
`

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 30, cfg.Retention.PendingDays)
	assert.Equal(t, 7, cfg.Retention.DecidedDays)
	assert.Equal(t, 10000, cfg.Sync.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.False(t, cfg.Database.Elasticsearch.Enabled())

	w := cfg.Workers["application-decide"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)

	assert.Equal(t, []string{"/dashboard/reports"}, cfg.Authz.RolePermissions["viewer"])
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing broker",
			body:    "database:\n  postgres:\n    host: h\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "zoho enabled without token",
			body: minimalConfig + `
integrations:
  zoho:
    enabled: true
`,
			wantErr: "integrations.zoho.oauth_token is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DB_HOST", "db.internal")
			t.Setenv("ZOHO_CRM_OAUTH_TOKEN", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{}
	w := GetWorkerConfig(cfg, "crm-sync-retry")
	assert.True(t, w.Enabled)
	assert.Equal(t, 3, w.MaxRetries)
}
