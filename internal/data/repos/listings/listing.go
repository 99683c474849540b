package listings

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

type ListingRepo interface {
	GetByKey(dbc dbctx.Context, marketplaceID, listingURL string) (*types.MarketplaceListing, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MarketplaceListing, error)
	// Upsert inserts or merges into the canonical row keyed by
	// (marketplace_id, listing_url) and returns the canonical record.
	// Non-empty incoming fields overwrite; match score and reasons are only
	// replaced by a strictly greater score.
	Upsert(dbc dbctx.Context, incoming *types.MarketplaceListing) (*types.MarketplaceListing, error)
	ListByMarketplace(dbc dbctx.Context, marketplaceID string, limit, offset int) ([]*types.MarketplaceListing, error)
}

type listingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewListingRepo(db *gorm.DB, baseLog *logger.Logger) ListingRepo {
	return &listingRepo{db: db, log: baseLog.With("repo", "ListingRepo")}
}

func (r *listingRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *listingRepo) GetByKey(dbc dbctx.Context, marketplaceID, listingURL string) (*types.MarketplaceListing, error) {
	if marketplaceID == "" || listingURL == "" {
		return nil, nil
	}
	var row types.MarketplaceListing
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("marketplace_id = ? AND listing_url = ?", marketplaceID, listingURL).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *listingRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MarketplaceListing, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.MarketplaceListing
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *listingRepo) Upsert(dbc dbctx.Context, incoming *types.MarketplaceListing) (*types.MarketplaceListing, error) {
	if incoming == nil || incoming.MarketplaceID == "" || incoming.ListingURL == "" {
		return nil, gorm.ErrInvalidData
	}

	var canonical *types.MarketplaceListing
	err := r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var existing types.MarketplaceListing
		err := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("marketplace_id = ? AND listing_url = ?", incoming.MarketplaceID, incoming.ListingURL).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if existing.ID == uuid.Nil {
			if incoming.FirstSeenAt.IsZero() {
				incoming.FirstSeenAt = now
			}
			incoming.LastSeenAt = now
			if err := txx.Create(incoming).Error; err != nil {
				return err
			}
			canonical = incoming
			return nil
		}

		MergeListing(&existing, incoming, now)
		if err := txx.Save(&existing).Error; err != nil {
			return err
		}
		canonical = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return canonical, nil
}

func (r *listingRepo) ListByMarketplace(dbc dbctx.Context, marketplaceID string, limit, offset int) ([]*types.MarketplaceListing, error) {
	q := r.tx(dbc).WithContext(dbc.Ctx).Model(&types.MarketplaceListing{})
	if marketplaceID != "" {
		q = q.Where("marketplace_id = ?", marketplaceID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*types.MarketplaceListing
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MergeListing folds an incoming scan of a known listing into the canonical
// row. Non-empty descriptive fields win; match score and reasons only move
// upward so a weaker rescan never regresses recorded match quality. Both
// repo implementations share this policy.
func MergeListing(existing, incoming *types.MarketplaceListing, now time.Time) {
	if incoming.Title != "" {
		existing.Title = incoming.Title
	}
	if incoming.Description != "" {
		existing.Description = incoming.Description
	}
	if incoming.ImageURL != "" {
		existing.ImageURL = incoming.ImageURL
	}
	if incoming.SellerName != "" {
		existing.SellerName = incoming.SellerName
	}
	if incoming.Price != nil {
		existing.Price = incoming.Price
	}
	if incoming.Currency != "" {
		existing.Currency = incoming.Currency
	}
	if incoming.MatchScore > existing.MatchScore {
		existing.MatchScore = incoming.MatchScore
		existing.MatchReasons = incoming.MatchReasons
	}
	existing.LastSeenAt = now
	existing.UpdatedAt = now
}
