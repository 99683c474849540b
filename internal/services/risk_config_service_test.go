package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos/memory"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/risk"
)

func TestSaveValidatesBeforePersisting(t *testing.T) {
	set := memory.NewSet()
	svc := NewRiskConfigService(testLogger(t), set.RiskConfigs)
	dbc := dbctx.Background()

	bad := &risk.Config{DefaultLevel: "NOPE"}
	_, err := svc.Save(dbc, bad, "bad")
	require.Error(t, err)

	rec, err := svc.ActiveRecord(dbc)
	require.NoError(t, err)
	assert.Nil(t, rec, "invalid config must not activate")
}

func TestSaveActivatesNewVersionAndServesIt(t *testing.T) {
	set := memory.NewSet()
	svc := NewRiskConfigService(testLogger(t), set.RiskConfigs)
	dbc := dbctx.Background()

	rec, err := svc.Save(dbc, intakeTestConfig(), "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)

	active, err := svc.Active(dbc)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "LOW", active.DefaultLevel)

	// A second save bumps the version and replaces the cached config.
	cfg := intakeTestConfig()
	cfg.DefaultLevel = "MEDIUM"
	rec2, err := svc.Save(dbc, cfg, "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, rec2.Version)

	active, err = svc.Active(dbc)
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", active.DefaultLevel)

	versions, err := svc.ListVersions(dbc)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestActiveErrorsWithoutConfig(t *testing.T) {
	set := memory.NewSet()
	svc := NewRiskConfigService(testLogger(t), set.RiskConfigs)

	_, err := svc.Active(dbctx.Background())
	assert.Error(t, err)
}

func TestSeedIfEmptyInstallsYAML(t *testing.T) {
	set := memory.NewSet()
	svc := NewRiskConfigService(testLogger(t), set.RiskConfigs)
	dbc := dbctx.Background()

	path := filepath.Join(t.TempDir(), "risk.yaml")
	yaml := `
risk_levels:
  - name: HIGH
    score_threshold: 0.6
    priority: 2
  - name: LOW
    score_threshold: 0.0
    priority: 1
default_level: LOW
max_total_score: 1.0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	require.NoError(t, svc.SeedIfEmpty(dbc, path))
	rec, err := svc.ActiveRecord(dbc)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, "default", rec.Name)

	// Idempotent: an active config blocks reseeding.
	require.NoError(t, svc.SeedIfEmpty(dbc, path))
	rec, err = svc.ActiveRecord(dbc)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
}

func TestSeedIfEmptyMissingFileErrors(t *testing.T) {
	set := memory.NewSet()
	svc := NewRiskConfigService(testLogger(t), set.RiskConfigs)

	err := svc.SeedIfEmpty(dbctx.Background(), "/nonexistent/risk.yaml")
	assert.Error(t, err)
}
