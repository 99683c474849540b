package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
	"github.com/vigilhq/recallwatch-backend/internal/risk"
	"github.com/vigilhq/recallwatch-backend/internal/schedule"
)

// RecallIntakeService glues classification to scheduling: every ingested
// recall is classified against the active config, and recalls landing on
// the highest-priority risk level get a daily investigation starting
// immediately.
type RecallIntakeService interface {
	Ingest(dbc dbctx.Context, recall *types.Recall, marketplaceIDs []string) (*types.Recall, *types.Investigation, error)
	Classify(dbc dbctx.Context, id uuid.UUID) (*types.Recall, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Recall, error)
	List(dbc dbctx.Context, riskLevel string, limit, offset int) ([]*types.Recall, error)
}

type recallIntakeService struct {
	log            *logger.Logger
	recalls        repos.RecallRepo
	riskConfigs    RiskConfigService
	investigations InvestigationService

	defaultMarketplaces []string
}

func NewRecallIntakeService(
	baseLog *logger.Logger,
	recalls repos.RecallRepo,
	riskConfigs RiskConfigService,
	invService InvestigationService,
	defaultMarketplaces []string,
) RecallIntakeService {
	return &recallIntakeService{
		log:                 baseLog.With("service", "RecallIntakeService"),
		recalls:             recalls,
		riskConfigs:         riskConfigs,
		investigations:      invService,
		defaultMarketplaces: defaultMarketplaces,
	}
}

func (s *recallIntakeService) Ingest(dbc dbctx.Context, recall *types.Recall, marketplaceIDs []string) (*types.Recall, *types.Investigation, error) {
	if recall == nil || recall.Title == "" {
		return nil, nil, fmt.Errorf("recall with title required")
	}
	if recall.Source == "" {
		recall.Source = "manual"
	}
	if _, err := s.recalls.Create(dbc, recall); err != nil {
		return nil, nil, fmt.Errorf("create recall: %w", err)
	}

	cfg, err := s.riskConfigs.Active(dbc)
	if err != nil {
		return nil, nil, err
	}
	level, score := risk.Classify(recall, cfg)
	now := time.Now().UTC()
	if err := s.recalls.UpdateClassification(dbc, recall.ID, level, score, now); err != nil {
		return nil, nil, fmt.Errorf("persist classification: %w", err)
	}
	recall.RiskLevel = level
	recall.RiskScore = score
	recall.ClassifiedAt = &now
	s.log.Info("recall classified",
		"recall_id", recall.ID,
		"risk_level", level,
		"risk_score", score)

	if level != highestPriorityLevel(cfg) {
		return recall, nil, nil
	}

	marketplaces := marketplaceIDs
	if len(marketplaces) == 0 {
		marketplaces = s.defaultMarketplaces
	}
	if len(marketplaces) == 0 {
		s.log.Warn("high-risk recall has no marketplaces to monitor", "recall_id", recall.ID)
		return recall, nil, nil
	}

	inv, err := s.investigations.Create(dbc, CreateInvestigationParams{
		Name:           fmt.Sprintf("auto: %s", recall.Title),
		TargetIDs:      []uuid.UUID{recall.ID},
		MarketplaceIDs: marketplaces,
		ScheduleKind:   string(schedule.KindDaily),
		StartTime:      now,
		CreatedBy:      "system",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("auto-create investigation: %w", err)
	}
	s.log.Info("high-risk recall auto-scheduled",
		"recall_id", recall.ID,
		"investigation_id", inv.ID)
	return recall, inv, nil
}

func (s *recallIntakeService) Classify(dbc dbctx.Context, id uuid.UUID) (*types.Recall, error) {
	recall, err := s.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if recall == nil {
		return nil, fmt.Errorf("recall %s not found", id)
	}
	cfg, err := s.riskConfigs.Active(dbc)
	if err != nil {
		return nil, err
	}
	level, score := risk.Classify(recall, cfg)
	now := time.Now().UTC()
	if err := s.recalls.UpdateClassification(dbc, id, level, score, now); err != nil {
		return nil, err
	}
	recall.RiskLevel = level
	recall.RiskScore = score
	recall.ClassifiedAt = &now
	return recall, nil
}

// GetByID reports a missing recall as (nil, nil), mirroring the repo
// convention, so the HTTP layer can answer 404 instead of a generic error.
func (s *recallIntakeService) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Recall, error) {
	return s.recalls.GetByID(dbc, id)
}

func (s *recallIntakeService) List(dbc dbctx.Context, riskLevel string, limit, offset int) ([]*types.Recall, error) {
	return s.recalls.List(dbc, riskLevel, limit, offset)
}

// highestPriorityLevel names the most severe level the config declares.
func highestPriorityLevel(cfg *risk.Config) string {
	best := ""
	bestPriority := 0
	for _, lvl := range cfg.Levels {
		if best == "" || lvl.Priority > bestPriority {
			best = lvl.Name
			bestPriority = lvl.Priority
		}
	}
	return best
}
