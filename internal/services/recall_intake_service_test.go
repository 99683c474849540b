package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos"
	"github.com/vigilhq/recallwatch-backend/internal/data/repos/memory"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/risk"
	"github.com/vigilhq/recallwatch-backend/internal/schedule"
)

func intakeTestConfig() *risk.Config {
	perUnit := 0.05
	maxContribution := 0.4
	return &risk.Config{
		Levels: []risk.Level{
			{Name: "HIGH", ScoreThreshold: 0.6, Priority: 3},
			{Name: "MEDIUM", ScoreThreshold: 0.3, Priority: 2},
			{Name: "LOW", ScoreThreshold: 0.0, Priority: 1},
		},
		FieldRules: []risk.FieldRule{
			{FieldPath: "deaths", Operator: risk.OpGreater, ComparisonValue: 0, ForceLevel: "HIGH", Enabled: true},
			{FieldPath: "injuries", Operator: risk.OpGreater, ComparisonValue: 0, PerUnitContribution: &perUnit, MaxContribution: &maxContribution, Enabled: true},
		},
		QuantityThresholds: []risk.QuantityThreshold{
			{Threshold: 100000, ScoreContribution: 0.05},
			{Threshold: 500000, ScoreContribution: 0.10},
		},
		DefaultLevel:  "LOW",
		MaxTotalScore: 1.0,
	}
}

func newIntakeFixture(t *testing.T) (RecallIntakeService, *schedule.ManualTrigger, repos.Set) {
	t.Helper()
	set := memory.NewSet()
	trigger := schedule.NewManualTrigger()
	scheduler := schedule.NewScheduler(testLogger(t), set.Investigations, trigger, noopRunner{}, nil)
	invSvc := NewInvestigationService(testLogger(t), set.Investigations, set.InvestigationListings, scheduler, nil)
	cfgSvc := NewRiskConfigService(testLogger(t), set.RiskConfigs)
	_, err := cfgSvc.Save(dbctx.Background(), intakeTestConfig(), "test")
	require.NoError(t, err)
	intake := NewRecallIntakeService(testLogger(t), set.Recalls, cfgSvc, invSvc, []string{"ebay", "facebook"})
	return intake, trigger, set
}

func TestIngestClassifiesAndPersists(t *testing.T) {
	intake, _, set := newIntakeFixture(t)
	dbc := dbctx.Background()

	recall, inv, err := intake.Ingest(dbc, &types.Recall{
		Title:         "Toy recall",
		Injuries:      8,
		UnitsAffected: 600000,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, recall)
	assert.Nil(t, inv, "MEDIUM recalls are not auto-scheduled")

	assert.Equal(t, "MEDIUM", recall.RiskLevel)
	assert.InDelta(t, 0.50, recall.RiskScore, 0.001)
	require.NotNil(t, recall.ClassifiedAt)

	stored, err := set.Recalls.GetByID(dbc, recall.ID)
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", stored.RiskLevel)
	assert.Equal(t, "manual", stored.Source)
}

func TestIngestHighRiskAutoSchedulesDaily(t *testing.T) {
	intake, trigger, set := newIntakeFixture(t)
	dbc := dbctx.Background()

	recall, inv, err := intake.Ingest(dbc, &types.Recall{
		Title:  "Fatal sleeper recall",
		Deaths: 1,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, inv)

	assert.Equal(t, "HIGH", recall.RiskLevel)
	assert.Equal(t, 0.0, recall.RiskScore, "forced level carries no accumulated score")

	assert.Equal(t, "daily", inv.ScheduleKind)
	assert.Equal(t, "system", inv.CreatedBy)
	assert.Equal(t, []uuid.UUID{recall.ID}, inv.Targets())
	assert.Equal(t, []string{"ebay", "facebook"}, inv.Marketplaces())

	_, pending := trigger.Pending(inv.ID.String())
	assert.True(t, pending, "auto-created investigation must be on the calendar")

	stored, err := set.Investigations.GetByID(dbc, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.InvestigationStatusScheduled, stored.Status)
}

func TestIngestExplicitMarketplacesOverrideDefaults(t *testing.T) {
	intake, _, _ := newIntakeFixture(t)

	_, inv, err := intake.Ingest(dbctx.Background(), &types.Recall{
		Title:  "Fatal recall",
		Deaths: 2,
	}, []string{"craigslist"})
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, []string{"craigslist"}, inv.Marketplaces())
}

func TestIngestRequiresTitle(t *testing.T) {
	intake, _, _ := newIntakeFixture(t)
	_, _, err := intake.Ingest(dbctx.Background(), &types.Recall{}, nil)
	assert.Error(t, err)
}

func TestReclassifyAfterConfigChange(t *testing.T) {
	intake, _, set := newIntakeFixture(t)
	dbc := dbctx.Background()

	recall, _, err := intake.Ingest(dbc, &types.Recall{
		Title:    "Minor recall",
		Injuries: 2,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "LOW", recall.RiskLevel)

	// Stiffen the config: injuries now weigh 0.2 each.
	cfgSvc := NewRiskConfigService(testLogger(t), set.RiskConfigs)
	cfg := intakeTestConfig()
	perUnit := 0.2
	cfg.FieldRules[1].PerUnitContribution = &perUnit
	_, err = cfgSvc.Save(dbc, cfg, "stiffer")
	require.NoError(t, err)

	reclassified, err := NewRecallIntakeService(testLogger(t), set.Recalls, cfgSvc, nil, nil).Classify(dbc, recall.ID)
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", reclassified.RiskLevel)
	assert.InDelta(t, 0.4, reclassified.RiskScore, 0.001)
}

func TestGetByIDMissingRecallIsNil(t *testing.T) {
	intake, _, _ := newIntakeFixture(t)

	recall, err := intake.GetByID(dbctx.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, recall, "missing recall must surface as nil, not an error")
}
