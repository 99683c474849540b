package schedule

import (
	"sync"
	"time"

	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

// Handle identifies one installed trigger. Cancel reports whether the
// trigger was still pending when cancelled.
type Handle interface {
	Cancel() bool
}

// Trigger is the job-trigger backend: install a one-shot callback at a
// point in time, keyed by job ID. Scheduling the same job ID again replaces
// the previous trigger. Cancel reports whether a trigger was pending.
type Trigger interface {
	Schedule(jobID string, fireAt time.Time, fn func()) Handle
	Cancel(jobID string) bool
}

// TimerTrigger backs triggers with in-process timers. One timer exists per
// job ID at any moment.
type TimerTrigger struct {
	log *logger.Logger

	mu     sync.Mutex
	timers map[string]*timerHandle
}

func NewTimerTrigger(baseLog *logger.Logger) *TimerTrigger {
	return &TimerTrigger{
		log:    baseLog.With("component", "TimerTrigger"),
		timers: make(map[string]*timerHandle),
	}
}

func (t *TimerTrigger) Schedule(jobID string, fireAt time.Time, fn func()) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[jobID]; ok {
		existing.cancelLocked()
		delete(t.timers, jobID)
	}

	h := &timerHandle{owner: t, jobID: jobID}
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	h.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		if t.timers[jobID] == h {
			delete(t.timers, jobID)
		}
		h.fired = true
		t.mu.Unlock()
		fn()
	})
	t.timers[jobID] = h
	t.log.Debug("trigger installed", "job_id", jobID, "fire_at", fireAt)
	return h
}

func (t *TimerTrigger) Cancel(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.timers[jobID]
	if !ok {
		return false
	}
	delete(t.timers, jobID)
	return h.cancelLocked()
}

// Shutdown cancels every pending trigger.
func (t *TimerTrigger) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, h := range t.timers {
		h.cancelLocked()
		delete(t.timers, id)
	}
}

type timerHandle struct {
	owner *TimerTrigger
	jobID string
	timer *time.Timer

	cancelled bool
	fired     bool
}

func (h *timerHandle) Cancel() bool {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	if h.owner.timers[h.jobID] == h {
		delete(h.owner.timers, h.jobID)
	}
	return h.cancelLocked()
}

func (h *timerHandle) cancelLocked() bool {
	if h.cancelled || h.fired {
		return false
	}
	h.cancelled = true
	return h.timer.Stop()
}

// ManualTrigger records scheduled triggers and fires them on demand. Used
// by tests and by the backfill CLI's dry runs.
type ManualTrigger struct {
	mu      sync.Mutex
	pending map[string]*manualHandle
}

func NewManualTrigger() *ManualTrigger {
	return &ManualTrigger{pending: make(map[string]*manualHandle)}
}

func (t *ManualTrigger) Schedule(jobID string, fireAt time.Time, fn func()) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := &manualHandle{owner: t, jobID: jobID, fireAt: fireAt, fn: fn}
	t.pending[jobID] = h
	return h
}

func (t *ManualTrigger) Cancel(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[jobID]; ok {
		delete(t.pending, jobID)
		return true
	}
	return false
}

// Fire runs the pending trigger for jobID synchronously, if any.
func (t *ManualTrigger) Fire(jobID string) bool {
	t.mu.Lock()
	h, ok := t.pending[jobID]
	if ok {
		delete(t.pending, jobID)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	h.fn()
	return true
}

// Pending reports whether a trigger is installed for jobID and its fire time.
func (t *ManualTrigger) Pending(jobID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.pending[jobID]
	if !ok {
		return time.Time{}, false
	}
	return h.fireAt, true
}

type manualHandle struct {
	owner  *ManualTrigger
	jobID  string
	fireAt time.Time
	fn     func()
}

func (h *manualHandle) Cancel() bool {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	if h.owner.pending[h.jobID] == h {
		delete(h.owner.pending, h.jobID)
		return true
	}
	return false
}
