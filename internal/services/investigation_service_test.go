package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos"
	"github.com/vigilhq/recallwatch-backend/internal/data/repos/memory"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/schedule"
)

type noopRunner struct{}

func (noopRunner) Run(context.Context, *types.Investigation) error { return nil }

func newInvestigationFixture(t *testing.T) (InvestigationService, *schedule.ManualTrigger, repos.Set) {
	t.Helper()
	set := memory.NewSet()
	trigger := schedule.NewManualTrigger()
	scheduler := schedule.NewScheduler(testLogger(t), set.Investigations, trigger, noopRunner{}, nil)
	svc := NewInvestigationService(testLogger(t), set.Investigations, set.InvestigationListings, scheduler, nil)
	return svc, trigger, set
}

func validParams() CreateInvestigationParams {
	return CreateInvestigationParams{
		Name:           "sleeper watch",
		TargetIDs:      []uuid.UUID{uuid.New()},
		MarketplaceIDs: []string{"ebay"},
		ScheduleKind:   "daily",
		StartTime:      time.Now().UTC().Add(time.Hour),
	}
}

func TestCreateInvestigationSchedulesTrigger(t *testing.T) {
	svc, trigger, set := newInvestigationFixture(t)

	inv, err := svc.Create(dbctx.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, types.InvestigationStatusScheduled, inv.Status)
	assert.Equal(t, "user", inv.CreatedBy)

	_, pending := trigger.Pending(inv.ID.String())
	assert.True(t, pending)

	stored, err := set.Investigations.GetByID(dbctx.Background(), inv.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.ScheduledStartTime.After(time.Now().UTC()))
}

func TestCreateInvestigationValidation(t *testing.T) {
	svc, _, _ := newInvestigationFixture(t)
	dbc := dbctx.Background()

	p := validParams()
	p.TargetIDs = nil
	_, err := svc.Create(dbc, p)
	assert.Error(t, err)

	p = validParams()
	p.MarketplaceIDs = nil
	_, err = svc.Create(dbc, p)
	assert.Error(t, err)

	p = validParams()
	p.ScheduleKind = "hourly"
	_, err = svc.Create(dbc, p)
	assert.Error(t, err)
}

func TestCancelScheduledInvestigation(t *testing.T) {
	svc, trigger, _ := newInvestigationFixture(t)
	dbc := dbctx.Background()

	inv, err := svc.Create(dbc, validParams())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(dbc, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.InvestigationStatusCancelled, cancelled.Status)

	_, pending := trigger.Pending(inv.ID.String())
	assert.False(t, pending, "cancel must remove the trigger")

	// Cancelling again fails: terminal statuses are not cancellable.
	_, err = svc.Cancel(dbc, inv.ID)
	assert.Error(t, err)
}

func TestRescheduleOnlyTerminalStatuses(t *testing.T) {
	svc, trigger, set := newInvestigationFixture(t)
	dbc := dbctx.Background()

	inv, err := svc.Create(dbc, validParams())
	require.NoError(t, err)

	// Scheduled investigations cannot be rescheduled.
	_, err = svc.Reschedule(dbc, inv.ID, nil)
	assert.Error(t, err)

	ok, err := set.Investigations.TransitionStatus(dbc, inv.ID,
		[]string{types.InvestigationStatusScheduled},
		map[string]interface{}{
			"status":     types.InvestigationStatusFailed,
			"last_error": "boom",
		})
	require.NoError(t, err)
	require.True(t, ok)
	trigger.Cancel(inv.ID.String())

	anchor := time.Now().UTC().Add(2 * time.Hour)
	resched, err := svc.Reschedule(dbc, inv.ID, &anchor)
	require.NoError(t, err)
	assert.Equal(t, types.InvestigationStatusScheduled, resched.Status)
	assert.Empty(t, resched.LastError, "reschedule clears the previous failure")
	assert.Nil(t, resched.StartTime)
	assert.Nil(t, resched.EndTime)

	fireAt, pending := trigger.Pending(inv.ID.String())
	require.True(t, pending)
	assert.True(t, fireAt.Equal(anchor))
}

func TestRestoreTriggersReArmsScheduled(t *testing.T) {
	svc, trigger, set := newInvestigationFixture(t)
	dbc := dbctx.Background()

	inv, err := svc.Create(dbc, validParams())
	require.NoError(t, err)

	// Simulate a restart: the trigger registry is empty but the row says
	// scheduled.
	trigger.Cancel(inv.ID.String())
	_, pending := trigger.Pending(inv.ID.String())
	require.False(t, pending)

	// A terminal investigation must not be re-armed.
	done, err := set.Investigations.Create(dbc, &types.Investigation{
		Name:         "done",
		ScheduleKind: "daily",
		Status:       types.InvestigationStatusCompleted,
	})
	require.NoError(t, err)

	require.NoError(t, svc.RestoreTriggers(context.Background()))

	_, pending = trigger.Pending(inv.ID.String())
	assert.True(t, pending)
	_, pending = trigger.Pending(done.ID.String())
	assert.False(t, pending)
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _, _ := newInvestigationFixture(t)
	_, err := svc.GetByID(dbctx.Background(), uuid.New())
	assert.Error(t, err)
}
