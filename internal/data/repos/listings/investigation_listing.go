package listings

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

type InvestigationListingRepo interface {
	// Link creates or refreshes the join row between an investigation and a
	// canonical listing. Idempotent per (investigation_id, listing_id).
	Link(dbc dbctx.Context, link *types.InvestigationListing) (*types.InvestigationListing, error)
	ListByInvestigation(dbc dbctx.Context, investigationID uuid.UUID, limit, offset int) ([]*types.InvestigationListing, error)
	CountByInvestigation(dbc dbctx.Context, investigationID uuid.UUID) (int64, error)
	CountByInvestigationAndStatus(dbc dbctx.Context, investigationID uuid.UUID, status string) (int64, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error
}

type investigationListingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInvestigationListingRepo(db *gorm.DB, baseLog *logger.Logger) InvestigationListingRepo {
	return &investigationListingRepo{db: db, log: baseLog.With("repo", "InvestigationListingRepo")}
}

func (r *investigationListingRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *investigationListingRepo) Link(dbc dbctx.Context, link *types.InvestigationListing) (*types.InvestigationListing, error) {
	if link == nil || link.InvestigationID == uuid.Nil || link.ListingID == uuid.Nil {
		return nil, gorm.ErrInvalidData
	}
	var out *types.InvestigationListing
	err := r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var existing types.InvestigationListing
		err := txx.Where("investigation_id = ? AND listing_id = ?", link.InvestigationID, link.ListingID).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != uuid.Nil {
			existing.UpdatedAt = time.Now().UTC()
			if link.Metadata != nil {
				existing.Metadata = link.Metadata
			}
			if err := txx.Save(&existing).Error; err != nil {
				return err
			}
			out = &existing
			return nil
		}
		if link.Status == "" {
			link.Status = types.LinkStatusFound
		}
		if err := txx.Create(link).Error; err != nil {
			return err
		}
		out = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *investigationListingRepo) ListByInvestigation(dbc dbctx.Context, investigationID uuid.UUID, limit, offset int) ([]*types.InvestigationListing, error) {
	q := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.InvestigationListing{}).
		Preload("Listing").
		Where("investigation_id = ?", investigationID)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*types.InvestigationListing
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *investigationListingRepo) CountByInvestigation(dbc dbctx.Context, investigationID uuid.UUID) (int64, error) {
	var count int64
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.InvestigationListing{}).
		Where("investigation_id = ?", investigationID).
		Count(&count).Error
	return count, err
}

func (r *investigationListingRepo) CountByInvestigationAndStatus(dbc dbctx.Context, investigationID uuid.UUID, status string) (int64, error) {
	var count int64
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.InvestigationListing{}).
		Where("investigation_id = ? AND status = ?", investigationID, status).
		Count(&count).Error
	return count, err
}

func (r *investigationListingRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&types.InvestigationListing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}
