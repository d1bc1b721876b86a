package model_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/deadliner/internal/model"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, model.BackendSQLite, cfg.Backend)
	assert.Equal(t, "deadlines", cfg.Firestore.Collection)
	assert.Equal(t, "(default)", cfg.Firestore.DatabaseID)
	assert.Equal(t, "short", cfg.Display.Countdown)
	assert.Equal(t, 60, cfg.Sync.ReloadIntervalSec)
	assert.Equal(t, model.PolicyOptimistic, cfg.EffectivePolicy())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
backend: firestore
firestore:
  project_id: deadliner-test
  collection: coursework
display:
  timezone: Asia/Bangkok
  countdown: long
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, model.BackendFirestore, cfg.Backend)
	assert.Equal(t, "deadliner-test", cfg.Firestore.ProjectID)
	assert.Equal(t, "coursework", cfg.Firestore.Collection)
	assert.Equal(t, "firestore-credentials", cfg.Firestore.CredentialsKey)
	assert.Equal(t, "Asia/Bangkok", cfg.Display.Timezone)
	assert.Equal(t, model.PolicyAuthoritative, cfg.EffectivePolicy())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("DEADLINER_SQLITE_PATH", "/tmp/override.db")
	t.Setenv("DEADLINER_SYNC_POLICY", "authoritative")

	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.SQLite.Path)
	assert.Equal(t, model.PolicyAuthoritative, cfg.EffectivePolicy())
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	cfg.Display.Timezone = "Europe/Berlin"
	cfg.Sync.Policy = model.PolicyAuthoritative

	require.NoError(t, model.SaveConfig(path, cfg))

	loaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loaded.Display.Timezone)
	assert.Equal(t, model.PolicyAuthoritative, loaded.Sync.Policy)
	assert.Equal(t, cfg.SQLite.Path, loaded.SQLite.Path)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.Backend = "postgres"
	assert.Error(t, cfg.Validate())

	cfg.Backend = model.BackendFirestore
	assert.Error(t, cfg.Validate(), "project id is required")

	cfg.Firestore.ProjectID = "p"
	cfg.Sync.Policy = "eventual"
	assert.Error(t, cfg.Validate())
}
