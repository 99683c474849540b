package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/domain/investigations"
	"github.com/vigilhq/recallwatch-backend/internal/events"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

// Runner executes one investigation pass. The scheduler owns the status
// transitions around the call; the runner only does the work.
type Runner interface {
	Run(ctx context.Context, inv *types.Investigation) error
}

// Scheduler drives the investigation lifecycle off the trigger backend.
// Once an investigation is registered, every status transition flows
// through here: timer fires, the run executes, and completed recurring
// investigations are re-armed with a freshly computed fire time. Failed
// runs stay failed until an operator reschedules them.
type Scheduler struct {
	log     *logger.Logger
	invs    repos.InvestigationRepo
	trigger Trigger
	runner  Runner
	bus     events.Publisher

	now func() time.Time
}

func NewScheduler(
	baseLog *logger.Logger,
	invs repos.InvestigationRepo,
	trigger Trigger,
	runner Runner,
	bus events.Publisher,
) *Scheduler {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &Scheduler{
		log:     baseLog.With("service", "InvestigationScheduler"),
		invs:    invs,
		trigger: trigger,
		runner:  runner,
		bus:     bus,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register computes the next fire time from the investigation's anchor and
// installs a one-shot trigger for it. Re-registering an ID replaces any
// existing trigger, so duplicate timers cannot accumulate. Returns the
// computed fire time.
func (s *Scheduler) Register(ctx context.Context, inv *types.Investigation) (time.Time, error) {
	if inv == nil || inv.ID == uuid.Nil {
		return time.Time{}, fmt.Errorf("investigation required")
	}
	kind, err := ParseKind(inv.ScheduleKind)
	if err != nil {
		return time.Time{}, err
	}

	nextFire := NextRun(inv.ScheduledStartTime, kind, s.now())
	inv.ScheduledStartTime = nextFire
	inv.Status = investigations.StatusScheduled
	if err := s.invs.Save(dbctx.From(ctx), inv); err != nil {
		return time.Time{}, fmt.Errorf("save investigation: %w", err)
	}

	id := inv.ID
	s.trigger.Schedule(id.String(), nextFire, func() { s.fire(id) })
	s.log.Info("investigation registered", "investigation_id", id, "next_fire", nextFire, "kind", kind)
	s.publish(ctx, events.RunEvent{
		InvestigationID: id,
		Kind:            events.RunScheduled,
		NextRunAt:       nextFire,
		At:              s.now(),
	})
	return nextFire, nil
}

// Unregister removes the pending trigger for the investigation, if any.
func (s *Scheduler) Unregister(id uuid.UUID) bool {
	return s.trigger.Cancel(id.String())
}

// fire handles one trigger activation end to end.
func (s *Scheduler) fire(id uuid.UUID) {
	ctx := context.Background()
	dbc := dbctx.From(ctx)
	log := s.log.With("investigation_id", id)

	inv, err := s.invs.GetByID(dbc, id)
	if err != nil {
		log.Error("reload before run failed", "error", err)
		return
	}
	if inv == nil {
		log.Warn("stale trigger fired for missing investigation")
		return
	}

	// Guard against stale timers: only scheduled (or an interrupted
	// running) investigation may start a run, and the guarded transition
	// makes sure at most one run is active.
	startedAt := s.now()
	ok, err := s.invs.TransitionStatus(dbc, id,
		[]string{investigations.StatusScheduled, investigations.StatusRunning},
		map[string]interface{}{
			"status":     investigations.StatusRunning,
			"start_time": startedAt,
		})
	if err != nil {
		log.Error("transition to running failed", "error", err)
		return
	}
	if !ok {
		log.Warn("trigger fired but investigation is not runnable", "status", inv.Status)
		return
	}
	s.publish(ctx, events.RunEvent{InvestigationID: id, Kind: events.RunStarted, At: startedAt})

	inv.Status = investigations.StatusRunning
	runErr := s.runner.Run(ctx, inv)
	endedAt := s.now()

	if runErr != nil {
		// Failed runs are not rescheduled automatically; that would loop on
		// persistent faults. Operators reschedule explicitly.
		if _, err := s.invs.TransitionStatus(dbc, id,
			[]string{investigations.StatusRunning},
			map[string]interface{}{
				"status":     investigations.StatusFailed,
				"end_time":   endedAt,
				"last_error": runErr.Error(),
			}); err != nil {
			log.Error("transition to failed errored", "error", err)
		}
		log.Error("investigation run failed", "error", runErr)
		s.publish(ctx, events.RunEvent{
			InvestigationID: id,
			Kind:            events.RunFailed,
			Message:         runErr.Error(),
			At:              endedAt,
		})
		return
	}

	completed, err := s.invs.TransitionStatus(dbc, id,
		[]string{investigations.StatusRunning},
		map[string]interface{}{
			"status":   investigations.StatusCompleted,
			"end_time": endedAt,
		})
	if err != nil {
		log.Error("transition to completed errored", "error", err)
		return
	}
	if !completed {
		// Cancelled mid-flight; the run's results stand but no reschedule.
		log.Info("run finished but investigation left running state, skipping reschedule")
		return
	}

	reloaded, err := s.invs.GetByID(dbc, id)
	if err != nil || reloaded == nil {
		log.Error("reload after run failed", "error", err)
		return
	}
	s.publish(ctx, events.RunEvent{
		InvestigationID: id,
		Kind:            events.RunCompleted,
		ListingsFound:   reloaded.ListingsFound,
		At:              endedAt,
	})

	kind, err := ParseKind(reloaded.ScheduleKind)
	if err != nil {
		log.Error("completed investigation has invalid schedule kind", "kind", reloaded.ScheduleKind)
		return
	}
	if !kind.Recurring() {
		log.Info("one-shot investigation completed")
		return
	}
	if _, err := s.Register(ctx, reloaded); err != nil {
		log.Error("re-register after completion failed", "error", err)
	}
}

func (s *Scheduler) publish(ctx context.Context, ev events.RunEvent) {
	if err := s.bus.PublishRunEvent(ctx, ev); err != nil {
		s.log.Warn("publish run event failed", "kind", ev.Kind, "error", err)
	}
}
