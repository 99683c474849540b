package riskcfg

import (
	"time"

	"gorm.io/gorm"

	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

type RiskConfigRepo interface {
	GetActive(dbc dbctx.Context) (*types.RiskConfigRecord, error)
	// SaveNewVersion deactivates the current active config and inserts the
	// record as the next version, atomically.
	SaveNewVersion(dbc dbctx.Context, record *types.RiskConfigRecord) (*types.RiskConfigRecord, error)
	ListVersions(dbc dbctx.Context, limit int) ([]*types.RiskConfigRecord, error)
}

type riskConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRiskConfigRepo(db *gorm.DB, baseLog *logger.Logger) RiskConfigRepo {
	return &riskConfigRepo{db: db, log: baseLog.With("repo", "RiskConfigRepo")}
}

func (r *riskConfigRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *riskConfigRepo) GetActive(dbc dbctx.Context) (*types.RiskConfigRecord, error) {
	var row types.RiskConfigRecord
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("active = ?", true).
		Order("version DESC").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Version == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *riskConfigRepo) SaveNewVersion(dbc dbctx.Context, record *types.RiskConfigRecord) (*types.RiskConfigRecord, error) {
	if record == nil {
		return nil, gorm.ErrInvalidData
	}
	err := r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var latest types.RiskConfigRecord
		if err := txx.Model(&types.RiskConfigRecord{}).
			Order("version DESC").
			Limit(1).
			Find(&latest).Error; err != nil {
			return err
		}
		if err := txx.Model(&types.RiskConfigRecord{}).
			Where("active = ?", true).
			Updates(map[string]interface{}{"active": false, "updated_at": time.Now().UTC()}).Error; err != nil {
			return err
		}
		record.Version = latest.Version + 1
		record.Active = true
		return txx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *riskConfigRepo) ListVersions(dbc dbctx.Context, limit int) ([]*types.RiskConfigRecord, error) {
	q := r.tx(dbc).WithContext(dbc.Ctx).Model(&types.RiskConfigRecord{}).Order("version DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.RiskConfigRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
