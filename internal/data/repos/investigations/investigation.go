package investigations

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

type InvestigationRepo interface {
	Create(dbc dbctx.Context, inv *types.Investigation) (*types.Investigation, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Investigation, error)
	List(dbc dbctx.Context, status string, limit, offset int) ([]*types.Investigation, error)
	Save(dbc dbctx.Context, inv *types.Investigation) error
	// TransitionStatus applies updates only while the row's status is one of
	// allowedFrom. The guarded compare-and-set is what keeps a stale timer
	// from starting a second concurrent run.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, allowedFrom []string, updates map[string]interface{}) (bool, error)
	UpdateCounters(dbc dbctx.Context, id uuid.UUID, found, queued int) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type investigationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvestigationRepo(db *gorm.DB, baseLog *logger.Logger) InvestigationRepo {
	return &investigationRepo{db: db, log: baseLog.With("repo", "InvestigationRepo")}
}

func (r *investigationRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *investigationRepo) Create(dbc dbctx.Context, inv *types.Investigation) (*types.Investigation, error) {
	if inv == nil {
		return nil, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *investigationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Investigation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var inv types.Investigation
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == uuid.Nil {
		return nil, nil
	}
	return &inv, nil
}

func (r *investigationRepo) List(dbc dbctx.Context, status string, limit, offset int) ([]*types.Investigation, error) {
	q := r.tx(dbc).WithContext(dbc.Ctx).Model(&types.Investigation{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*types.Investigation
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *investigationRepo) Save(dbc dbctx.Context, inv *types.Investigation) error {
	if inv == nil || inv.ID == uuid.Nil {
		return gorm.ErrRecordNotFound
	}
	inv.UpdatedAt = time.Now().UTC()
	return r.tx(dbc).WithContext(dbc.Ctx).Save(inv).Error
}

func (r *investigationRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, allowedFrom []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now().UTC()
	res := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Investigation{}).
		Where("id = ? AND status IN ?", id, allowedFrom).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *investigationRepo) UpdateCounters(dbc dbctx.Context, id uuid.UUID, found, queued int) error {
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.Investigation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"listings_found":  found,
			"listings_queued": queued,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *investigationRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Delete(&types.Investigation{}).Error
}
