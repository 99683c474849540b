package services

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
	"github.com/vigilhq/recallwatch-backend/internal/schedule"
)

type CreateInvestigationParams struct {
	Name           string
	TargetIDs      []uuid.UUID
	MarketplaceIDs []string
	ScheduleKind   string
	StartTime      time.Time
	CreatedBy      string
}

type InvestigationService interface {
	Create(dbc dbctx.Context, params CreateInvestigationParams) (*types.Investigation, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Investigation, error)
	List(dbc dbctx.Context, status string, limit, offset int) ([]*types.Investigation, error)
	// Cancel unregisters the trigger and marks the investigation cancelled.
	// An in-flight run is not interrupted; it observes the cancelled status
	// when it finishes and skips rescheduling.
	Cancel(dbc dbctx.Context, id uuid.UUID) (*types.Investigation, error)
	// Reschedule puts a failed (or completed one-shot) investigation back on
	// the calendar. Operator action, never automatic.
	Reschedule(dbc dbctx.Context, id uuid.UUID, anchor *time.Time) (*types.Investigation, error)
	Listings(dbc dbctx.Context, id uuid.UUID, limit, offset int) ([]*types.InvestigationListing, error)
	// RestoreTriggers re-registers every scheduled investigation after a
	// process restart.
	RestoreTriggers(ctx context.Context) error
}

type investigationService struct {
	log       *logger.Logger
	invs      repos.InvestigationRepo
	links     repos.InvestigationListingRepo
	scheduler *schedule.Scheduler
	bus       events.Publisher
}

func NewInvestigationService(
	baseLog *logger.Logger,
	invs repos.InvestigationRepo,
	links repos.InvestigationListingRepo,
	scheduler *schedule.Scheduler,
	bus events.Publisher,
) InvestigationService {
	if bus == nil {
		bus = events.NopPublisher{}
	}
	return &investigationService{
		log:       baseLog.With("service", "InvestigationService"),
		invs:      invs,
		links:     links,
		scheduler: scheduler,
		bus:       bus,
	}
}

func (s *investigationService) Create(dbc dbctx.Context, params CreateInvestigationParams) (*types.Investigation, error) {
	if len(params.TargetIDs) == 0 {
		return nil, fmt.Errorf("at least one target required")
	}
	if len(params.MarketplaceIDs) == 0 {
		return nil, fmt.Errorf("at least one marketplace required")
	}
	kind, err := schedule.ParseKind(params.ScheduleKind)
	if err != nil {
		return nil, err
	}

	start := params.StartTime.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	createdBy := params.CreatedBy
	if createdBy == "" {
		createdBy = "user"
	}
	name := params.Name
	if name == "" {
		name = fmt.Sprintf("investigation-%s", time.Now().UTC().Format("20060102-150405"))
	}

	inv := &types.Investigation{
		Name:               name,
		ScheduleKind:       string(kind),
		ScheduledStartTime: start,
		Status:             investigations.StatusScheduled,
		CreatedBy:          createdBy,
	}
	if err := inv.SetTargets(params.TargetIDs); err != nil {
		return nil, err
	}
	if err := inv.SetMarketplaces(params.MarketplaceIDs); err != nil {
		return nil, err
	}

	if _, err := s.invs.Create(dbc, inv); err != nil {
		return nil, fmt.Errorf("create investigation: %w", err)
	}
	if _, err := s.scheduler.Register(dbc.Ctx, inv); err != nil {
		return nil, fmt.Errorf("register investigation: %w", err)
	}
	s.log.Info("investigation created",
		"investigation_id", inv.ID,
		"kind", inv.ScheduleKind,
		"next_fire", inv.ScheduledStartTime)
	return inv, nil
}

func (s *investigationService) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Investigation, error) {
	inv, err := s.invs.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("investigation %s not found", id)
	}
	return inv, nil
}

func (s *investigationService) List(dbc dbctx.Context, status string, limit, offset int) ([]*types.Investigation, error) {
	return s.invs.List(dbc, status, limit, offset)
}

func (s *investigationService) Cancel(dbc dbctx.Context, id uuid.UUID) (*types.Investigation, error) {
	s.scheduler.Unregister(id)
	ok, err := s.invs.TransitionStatus(dbc, id,
		[]string{investigations.StatusScheduled, investigations.StatusRunning},
		map[string]interface{}{"status": investigations.StatusCancelled})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("investigation %s is not cancellable", id)
	}
	if err := s.bus.PublishRunEvent(dbc.Ctx, events.RunEvent{
		InvestigationID: id,
		Kind:            events.RunCancelled,
		At:              time.Now().UTC(),
	}); err != nil {
		s.log.Warn("publish cancel event failed", "investigation_id", id, "error", err)
	}
	return s.GetByID(dbc, id)
}

func (s *investigationService) Reschedule(dbc dbctx.Context, id uuid.UUID, anchor *time.Time) (*types.Investigation, error) {
	inv, err := s.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case investigations.StatusFailed, investigations.StatusCompleted, investigations.StatusCancelled:
	default:
		return nil, fmt.Errorf("investigation %s is %s, only terminal investigations can be rescheduled", id, inv.Status)
	}
	if anchor != nil {
		inv.ScheduledStartTime = anchor.UTC()
	}
	inv.LastError = ""
	inv.StartTime = nil
	inv.EndTime = nil
	if _, err := s.scheduler.Register(dbc.Ctx, inv); err != nil {
		return nil, err
	}
	s.log.Info("investigation rescheduled", "investigation_id", id, "next_fire", inv.ScheduledStartTime)
	return inv, nil
}

func (s *investigationService) Listings(dbc dbctx.Context, id uuid.UUID, limit, offset int) ([]*types.InvestigationListing, error) {
	return s.links.ListByInvestigation(dbc, id, limit, offset)
}

func (s *investigationService) RestoreTriggers(ctx context.Context) error {
	dbc := dbctx.From(ctx)
	pending, err := s.invs.List(dbc, investigations.StatusScheduled, 0, 0)
	if err != nil {
		return fmt.Errorf("list scheduled investigations: %w", err)
	}
	for _, inv := range pending {
		if _, err := s.scheduler.Register(ctx, inv); err != nil {
			s.log.Error("restore trigger failed", "investigation_id", inv.ID, "error", err)
		}
	}
	s.log.Info("triggers restored", "count", len(pending))
	return nil
}
