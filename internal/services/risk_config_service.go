package services

import (
	"fmt"
	"os"
	"sync"

	"gorm.io/datatypes"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
	"github.com/vigilhq/recallwatch-backend/internal/risk"
)

// RiskConfigService is the validated read/write path for the active risk
// classification config. The classifier only ever sees configs that passed
// validation here; saving a new version invalidates the cache.
type RiskConfigService interface {
	Active(dbc dbctx.Context) (*risk.Config, error)
	ActiveRecord(dbc dbctx.Context) (*types.RiskConfigRecord, error)
	Save(dbc dbctx.Context, cfg *risk.Config, name string) (*types.RiskConfigRecord, error)
	ListVersions(dbc dbctx.Context) ([]*types.RiskConfigRecord, error)
	// SeedIfEmpty installs the YAML config at path as version 1 when no
	// active config exists yet.
	SeedIfEmpty(dbc dbctx.Context, path string) error
}

type riskConfigService struct {
	log  *logger.Logger
	repo repos.RiskConfigRepo

	mu     sync.RWMutex
	cached *risk.Config
}

func NewRiskConfigService(baseLog *logger.Logger, repo repos.RiskConfigRepo) RiskConfigService {
	return &riskConfigService{
		log:  baseLog.With("service", "RiskConfigService"),
		repo: repo,
	}
}

func (s *riskConfigService) Active(dbc dbctx.Context) (*risk.Config, error) {
	s.mu.RLock()
	if s.cached != nil {
		cfg := s.cached
		s.mu.RUnlock()
		return cfg, nil
	}
	s.mu.RUnlock()

	record, err := s.repo.GetActive(dbc)
	if err != nil {
		return nil, fmt.Errorf("load active risk config: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("no active risk config")
	}
	cfg, err := risk.ParseJSON(record.Payload)
	if err != nil {
		// A stored config failing to parse means it bypassed validation;
		// surface it loudly instead of classifying with garbage.
		return nil, fmt.Errorf("stored risk config version %d is invalid: %w", record.Version, err)
	}

	s.mu.Lock()
	s.cached = cfg
	s.mu.Unlock()
	return cfg, nil
}

func (s *riskConfigService) ActiveRecord(dbc dbctx.Context) (*types.RiskConfigRecord, error) {
	return s.repo.GetActive(dbc)
}

func (s *riskConfigService) ListVersions(dbc dbctx.Context) ([]*types.RiskConfigRecord, error) {
	return s.repo.ListVersions(dbc, 50)
}

func (s *riskConfigService) Save(dbc dbctx.Context, cfg *risk.Config, name string) (*types.RiskConfigRecord, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	payload, err := risk.EncodeJSON(cfg)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "risk-config"
	}
	record, err := s.repo.SaveNewVersion(dbc, &types.RiskConfigRecord{
		Name:    name,
		Payload: datatypes.JSON(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("save risk config: %w", err)
	}

	s.mu.Lock()
	s.cached = cfg
	s.mu.Unlock()
	s.log.Info("risk config saved", "version", record.Version, "name", record.Name)
	return record, nil
}

func (s *riskConfigService) SeedIfEmpty(dbc dbctx.Context, path string) error {
	record, err := s.repo.GetActive(dbc)
	if err != nil {
		return err
	}
	if record != nil {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed risk config: %w", err)
	}
	cfg, err := risk.ParseYAML(raw)
	if err != nil {
		return fmt.Errorf("seed risk config: %w", err)
	}
	if _, err := s.Save(dbc, cfg, "default"); err != nil {
		return err
	}
	s.log.Info("seeded default risk config", "path", path)
	return nil
}
