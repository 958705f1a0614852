package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 60*time.Second, cfg.Workflow.FinalizeTimeout)
	assert.False(t, cfg.Workflow.ExclusiveRequests)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000},
		"database": {"driver": "sqlite", "sqlite_path": "test.db"},
		"workflow": {"exclusive_requests": true}
	}`), 0o600))

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("WORKFLOW_FINALIZE_TIMEOUT", "5s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Workflow.ExclusiveRequests)
	assert.Equal(t, 5*time.Second, cfg.Workflow.FinalizeTimeout)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestValidateRequiresBucketForS3(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "s3"
	assert.Error(t, cfg.Validate())

	cfg.Storage.S3Bucket = "registry-docs"
	assert.NoError(t, cfg.Validate())
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", db.GetDatabaseURL())
}
