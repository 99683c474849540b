package recalls

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

type RecallRepo interface {
	Create(dbc dbctx.Context, recall *types.Recall) (*types.Recall, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Recall, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Recall, error)
	List(dbc dbctx.Context, riskLevel string, limit, offset int) ([]*types.Recall, error)
	UpdateClassification(dbc dbctx.Context, id uuid.UUID, level string, score float64, at time.Time) error
}

type recallRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecallRepo(db *gorm.DB, baseLog *logger.Logger) RecallRepo {
	return &recallRepo{db: db, log: baseLog.With("repo", "RecallRepo")}
}

func (r *recallRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *recallRepo) Create(dbc dbctx.Context, recall *types.Recall) (*types.Recall, error) {
	if recall == nil {
		return nil, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(recall).Error; err != nil {
		return nil, err
	}
	return recall, nil
}

func (r *recallRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Recall, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var recall types.Recall
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Preload("Products").
		Where("id = ?", id).
		Limit(1).
		Find(&recall).Error
	if err != nil {
		return nil, err
	}
	if recall.ID == uuid.Nil {
		return nil, nil
	}
	return &recall, nil
}

func (r *recallRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Recall, error) {
	var out []*types.Recall
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Preload("Products").
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recallRepo) List(dbc dbctx.Context, riskLevel string, limit, offset int) ([]*types.Recall, error) {
	q := r.tx(dbc).WithContext(dbc.Ctx).Model(&types.Recall{}).Preload("Products")
	if riskLevel != "" {
		q = q.Where("risk_level = ?", riskLevel)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*types.Recall
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recallRepo) UpdateClassification(dbc dbctx.Context, id uuid.UUID, level string, score float64, at time.Time) error {
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Recall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"risk_level":    level,
			"risk_score":    score,
			"classified_at": at,
			"updated_at":    time.Now().UTC(),
		}).Error
}
