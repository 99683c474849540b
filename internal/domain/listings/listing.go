package listings

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MarketplaceListing is the canonical record for a marketplace item, unique
// by (marketplace_id, listing_url). All writes go through the repo's
// merge-upsert so a URL is never stored twice.
type MarketplaceListing struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	MarketplaceID string `gorm:"column:marketplace_id;not null;index:idx_listing_key,unique,priority:1" json:"marketplace_id"`
	ListingURL    string `gorm:"column:listing_url;not null;index:idx_listing_key,unique,priority:2" json:"listing_url"`

	Title       string   `gorm:"column:title" json:"title,omitempty"`
	Description string   `gorm:"column:description;type:text" json:"description,omitempty"`
	ImageURL    string   `gorm:"column:image_url" json:"image_url,omitempty"`
	SellerName  string   `gorm:"column:seller_name;index" json:"seller_name,omitempty"`
	Price       *float64 `gorm:"column:price" json:"price,omitempty"`
	Currency    string   `gorm:"column:currency" json:"currency,omitempty"`

	MatchScore   float64        `gorm:"column:match_score;not null;default:0;index" json:"match_score"`
	MatchReasons datatypes.JSON `gorm:"column:match_reasons;type:jsonb" json:"match_reasons,omitempty"`

	FirstSeenAt time.Time `gorm:"column:first_seen_at;not null" json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;not null" json:"last_seen_at"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MarketplaceListing) TableName() string { return "marketplace_listing" }

func (l *MarketplaceListing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (l *MarketplaceListing) Reasons() []string {
	var out []string
	if len(l.MatchReasons) == 0 {
		return out
	}
	if err := json.Unmarshal(l.MatchReasons, &out); err != nil {
		return nil
	}
	return out
}

func (l *MarketplaceListing) SetReasons(reasons []string) error {
	raw, err := json.Marshal(reasons)
	if err != nil {
		return err
	}
	l.MatchReasons = datatypes.JSON(raw)
	return nil
}
