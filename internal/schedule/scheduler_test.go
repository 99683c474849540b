package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos/memory"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/domain/investigations"
	"github.com/vigilhq/recallwatch-backend/internal/events"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	err   error
	onRun func(inv *types.Investigation)
}

func (f *fakeRunner) Run(_ context.Context, inv *types.Investigation) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun(inv)
	}
	return f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.RunEvent
}

func (b *recordingBus) PublishRunEvent(_ context.Context, ev events.RunEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Kind)
	}
	return out
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func newTestScheduler(t *testing.T, runner Runner) (*Scheduler, *ManualTrigger, *recordingBus) {
	t.Helper()
	set := memory.NewSet()
	trigger := NewManualTrigger()
	bus := &recordingBus{}
	s := NewScheduler(testLogger(t), set.Investigations, trigger, runner, bus)
	return s, trigger, bus
}

func seedInvestigation(t *testing.T, s *Scheduler, kind string) *types.Investigation {
	t.Helper()
	inv := &types.Investigation{
		Name:               "test investigation",
		ScheduleKind:       kind,
		ScheduledStartTime: time.Now().UTC().Add(-time.Hour),
		Status:             investigations.StatusScheduled,
	}
	created, err := s.invs.Create(dbctx.Background(), inv)
	if err != nil {
		t.Fatalf("create investigation: %v", err)
	}
	return created
}

func TestRegisterInstallsTriggerAndPersists(t *testing.T) {
	runner := &fakeRunner{}
	s, trigger, bus := newTestScheduler(t, runner)
	inv := seedInvestigation(t, s, "daily")

	before := time.Now().UTC()
	fireAt, err := s.Register(context.Background(), inv)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !fireAt.After(before) {
		t.Fatalf("fire time not in the future: %v", fireAt)
	}

	pending, ok := trigger.Pending(inv.ID.String())
	if !ok {
		t.Fatal("no trigger installed")
	}
	if !pending.Equal(fireAt) {
		t.Fatalf("trigger fire time mismatch: got=%v want=%v", pending, fireAt)
	}

	stored, err := s.invs.GetByID(dbctx.Background(), inv.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != investigations.StatusScheduled {
		t.Fatalf("unexpected status: %q", stored.Status)
	}
	if !stored.ScheduledStartTime.Equal(fireAt) {
		t.Fatalf("scheduled start not persisted: got=%v want=%v", stored.ScheduledStartTime, fireAt)
	}

	kinds := bus.kinds()
	if len(kinds) != 1 || kinds[0] != events.RunScheduled {
		t.Fatalf("unexpected events: %v", kinds)
	}
}

func TestRegisterRejectsUnknownKind(t *testing.T) {
	runner := &fakeRunner{}
	s, _, _ := newTestScheduler(t, runner)
	inv := seedInvestigation(t, s, "daily")
	inv.ScheduleKind = "sometimes"

	if _, err := s.Register(context.Background(), inv); err == nil {
		t.Fatal("expected error for unknown schedule kind")
	}
}

func TestFireRunsAndReArmsRecurring(t *testing.T) {
	runner := &fakeRunner{}
	s, trigger, bus := newTestScheduler(t, runner)
	inv := seedInvestigation(t, s, "daily")

	if _, err := s.Register(context.Background(), inv); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !trigger.Fire(inv.ID.String()) {
		t.Fatal("nothing to fire")
	}

	if runner.callCount() != 1 {
		t.Fatalf("runner calls: got=%d want=1", runner.callCount())
	}

	stored, _ := s.invs.GetByID(dbctx.Background(), inv.ID)
	if stored.Status != investigations.StatusScheduled {
		t.Fatalf("recurring investigation not re-armed: status=%q", stored.Status)
	}
	if stored.StartTime == nil || stored.EndTime == nil {
		t.Fatal("run window not recorded")
	}
	if _, ok := trigger.Pending(inv.ID.String()); !ok {
		t.Fatal("no trigger re-installed after completion")
	}

	kinds := bus.kinds()
	want := []string{events.RunScheduled, events.RunStarted, events.RunCompleted, events.RunScheduled}
	if len(kinds) != len(want) {
		t.Fatalf("unexpected events: got=%v want=%v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("unexpected event order: got=%v want=%v", kinds, want)
		}
	}
}

func TestFireFailureDoesNotReschedule(t *testing.T) {
	runner := &fakeRunner{err: errors.New("search backend down")}
	s, trigger, bus := newTestScheduler(t, runner)
	inv := seedInvestigation(t, s, "daily")

	if _, err := s.Register(context.Background(), inv); err != nil {
		t.Fatalf("register: %v", err)
	}
	trigger.Fire(inv.ID.String())

	stored, _ := s.invs.GetByID(dbctx.Background(), inv.ID)
	if stored.Status != investigations.StatusFailed {
		t.Fatalf("unexpected status: got=%q want=%q", stored.Status, investigations.StatusFailed)
	}
	if stored.LastError != "search backend down" {
		t.Fatalf("last error not recorded: %q", stored.LastError)
	}
	if _, ok := trigger.Pending(inv.ID.String()); ok {
		t.Fatal("failed investigation must not be rescheduled")
	}

	kinds := bus.kinds()
	if kinds[len(kinds)-1] != events.RunFailed {
		t.Fatalf("expected terminal run_failed event: %v", kinds)
	}
}

func TestFireOneShotCompletesWithoutReArm(t *testing.T) {
	runner := &fakeRunner{}
	s, trigger, _ := newTestScheduler(t, runner)
	inv := seedInvestigation(t, s, "custom")

	if _, err := s.Register(context.Background(), inv); err != nil {
		t.Fatalf("register: %v", err)
	}
	trigger.Fire(inv.ID.String())

	stored, _ := s.invs.GetByID(dbctx.Background(), inv.ID)
	if stored.Status != investigations.StatusCompleted {
		t.Fatalf("unexpected status: %q", stored.Status)
	}
	if _, ok := trigger.Pending(inv.ID.String()); ok {
		t.Fatal("one-shot investigation must not be re-armed")
	}
}

func TestFireStaleTriggerForMissingInvestigation(t *testing.T) {
	runner := &fakeRunner{}
	s, trigger, _ := newTestScheduler(t, runner)
	inv := seedInvestigation(t, s, "daily")

	if _, err := s.Register(context.Background(), inv); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.invs.Delete(dbctx.Background(), inv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	trigger.Fire(inv.ID.String())
	if runner.callCount() != 0 {
		t.Fatal("stale trigger must not start a run")
	}
}

func TestFireSkipsNonRunnableStatus(t *testing.T) {
	runner := &fakeRunner{}
	s, trigger, _ := newTestScheduler(t, runner)
	inv := seedInvestigation(t, s, "daily")

	if _, err := s.Register(context.Background(), inv); err != nil {
		t.Fatalf("register: %v", err)
	}
	ok, err := s.invs.TransitionStatus(dbctx.Background(), inv.ID,
		[]string{investigations.StatusScheduled},
		map[string]interface{}{"status": investigations.StatusCancelled})
	if err != nil || !ok {
		t.Fatalf("cancel transition: ok=%v err=%v", ok, err)
	}

	trigger.Fire(inv.ID.String())
	if runner.callCount() != 0 {
		t.Fatal("cancelled investigation must not run")
	}
}

func TestCancelMidFlightSkipsReschedule(t *testing.T) {
	s, trigger, _ := newTestScheduler(t, nil)
	inv := seedInvestigation(t, s, "daily")

	// Cancel while the runner is executing; this races with the completed
	// transition in real deployments, so the runner callback simulates it.
	runner := &fakeRunner{}
	runner.onRun = func(running *types.Investigation) {
		ok, err := s.invs.TransitionStatus(dbctx.Background(), running.ID,
			[]string{investigations.StatusRunning},
			map[string]interface{}{"status": investigations.StatusCancelled})
		if err != nil || !ok {
			t.Errorf("mid-flight cancel: ok=%v err=%v", ok, err)
		}
	}
	s.runner = runner

	if _, err := s.Register(context.Background(), inv); err != nil {
		t.Fatalf("register: %v", err)
	}
	trigger.Fire(inv.ID.String())

	stored, _ := s.invs.GetByID(dbctx.Background(), inv.ID)
	if stored.Status != investigations.StatusCancelled {
		t.Fatalf("unexpected status: %q", stored.Status)
	}
	if _, ok := trigger.Pending(inv.ID.String()); ok {
		t.Fatal("cancelled investigation must not be rescheduled")
	}
}

func TestUnregisterCancelsPendingTrigger(t *testing.T) {
	runner := &fakeRunner{}
	s, trigger, _ := newTestScheduler(t, runner)
	inv := seedInvestigation(t, s, "daily")

	if _, err := s.Register(context.Background(), inv); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !s.Unregister(inv.ID) {
		t.Fatal("unregister reported no pending trigger")
	}
	if _, ok := trigger.Pending(inv.ID.String()); ok {
		t.Fatal("trigger still pending after unregister")
	}
	if s.Unregister(inv.ID) {
		t.Fatal("second unregister must report no pending trigger")
	}
}

func TestTimerTriggerReplacesSameJobID(t *testing.T) {
	t.Parallel()
	trig := NewTimerTrigger(testLogger(t))
	defer trig.Shutdown()

	fired := make(chan string, 2)
	trig.Schedule("job", time.Now().Add(time.Hour), func() { fired <- "first" })
	trig.Schedule("job", time.Now().Add(10*time.Millisecond), func() { fired <- "second" })

	select {
	case got := <-fired:
		if got != "second" {
			t.Fatalf("replaced trigger fired: %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not fire")
	}
	select {
	case got := <-fired:
		t.Fatalf("unexpected second fire: %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerTriggerCancel(t *testing.T) {
	t.Parallel()
	trig := NewTimerTrigger(testLogger(t))
	defer trig.Shutdown()

	fired := make(chan struct{}, 1)
	trig.Schedule("job", time.Now().Add(30*time.Millisecond), func() { fired <- struct{}{} })
	if !trig.Cancel("job") {
		t.Fatal("cancel reported no pending trigger")
	}
	select {
	case <-fired:
		t.Fatal("cancelled trigger fired")
	case <-time.After(100 * time.Millisecond):
	}
}
