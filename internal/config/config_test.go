package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/syrupdata/dqaudit/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dqaudit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  host: redshift.internal
  database: dev
  username: auditor
  password: hunter2
`)

	cfg, err := appconfig.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5439, cfg.Warehouse.Port, "port should default to the Redshift port")
	assert.Equal(t, "waffles", cfg.Warehouse.Schema)
	assert.Equal(t, "require", cfg.Warehouse.SSLMode)
	assert.Equal(t, "models/marts", cfg.Dbt.ModelsPath)
	assert.Equal(t, 10, cfg.Audit.SampleLimit)
	assert.Equal(t, 10, cfg.Audit.MaxDefectExamples)
	assert.Equal(t, 50, cfg.Audit.MaxStatsColumns)
	assert.Equal(t, 3, cfg.Audit.RetryAttempts)
	assert.Equal(t, "data_quality_reports", cfg.Output.Dir)
	assert.False(t, cfg.Archive.Enabled)

	conn := cfg.GetConnectionString()
	assert.Contains(t, conn, "host=redshift.internal")
	assert.Contains(t, conn, "port=5439")
	assert.Contains(t, conn, "dbname=dev")
	assert.Contains(t, conn, "sslmode=require")
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("DQAUDIT_TEST_PASSWORD", "s3cret")

	path := writeConfig(t, `
warehouse:
  host: redshift.internal
  database: dev
  username: auditor
  password: ${DQAUDIT_TEST_PASSWORD}
`)

	cfg, err := appconfig.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Warehouse.Password)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  host: localhost
  port: 5432
  schema: analytics
  sslmode: disable
audit:
  sample_limit: 3
  max_stats_columns: 5
  model_timeout_seconds: 120
archive:
  enabled: true
  uri: mongodb://localhost:27017
`)

	cfg, err := appconfig.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Warehouse.Port)
	assert.Equal(t, "analytics", cfg.Warehouse.Schema)
	assert.Equal(t, 3, cfg.Audit.SampleLimit)
	assert.Equal(t, 5, cfg.Audit.MaxStatsColumns)
	assert.Equal(t, 120, cfg.Audit.ModelTimeoutSecs)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "dqaudit", cfg.Archive.Database, "archive database should default")
	assert.Equal(t, "reports", cfg.Archive.Collection)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := appconfig.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "warehouse: [not a mapping")

	_, err := appconfig.LoadConfig(path)
	require.Error(t, err)
}
