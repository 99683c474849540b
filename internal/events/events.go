package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	RunScheduled = "run_scheduled"
	RunStarted   = "run_started"
	RunCompleted = "run_completed"
	RunFailed    = "run_failed"
	RunCancelled = "run_cancelled"
)

// RunEvent is one investigation lifecycle notification for reviewer UIs.
type RunEvent struct {
	InvestigationID uuid.UUID `json:"investigation_id"`
	Kind            string    `json:"kind"`
	Message         string    `json:"message,omitempty"`
	ListingsFound   int       `json:"listings_found,omitempty"`
	NextRunAt       time.Time `json:"next_run_at,omitempty"`
	At              time.Time `json:"at"`
}

// Publisher delivers run events to whoever is listening. Publishing is
// best-effort; the scheduler logs and moves on when it fails.
type Publisher interface {
	PublishRunEvent(ctx context.Context, ev RunEvent) error
}

// NopPublisher drops every event. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRunEvent(context.Context, RunEvent) error { return nil }
