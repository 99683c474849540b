package listings

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vigilhq/recallwatch-backend/internal/domain/investigations"
)

const (
	LinkStatusFound  = "found"
	LinkStatusQueued = "queued"
)

// InvestigationListing links an investigation to a canonical listing with
// provenance. Many investigations may reference one listing row.
type InvestigationListing struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	InvestigationID uuid.UUID                     `gorm:"type:uuid;not null;index:idx_investigation_listing,unique,priority:1" json:"investigation_id"`
	Investigation   *investigations.Investigation `gorm:"constraint:OnDelete:CASCADE;foreignKey:InvestigationID;references:ID" json:"investigation,omitempty"`

	ListingID uuid.UUID           `gorm:"type:uuid;not null;index:idx_investigation_listing,unique,priority:2" json:"listing_id"`
	Listing   *MarketplaceListing `gorm:"constraint:OnDelete:CASCADE;foreignKey:ListingID;references:ID" json:"listing,omitempty"`

	Status   string         `gorm:"column:status;not null;default:'found';index" json:"status"`
	AddedBy  string         `gorm:"column:added_by;not null;default:'system'" json:"added_by"`
	Source   string         `gorm:"column:source;not null" json:"source"`
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (InvestigationListing) TableName() string { return "investigation_listing" }

func (il *InvestigationListing) BeforeCreate(tx *gorm.DB) error {
	if il.ID == uuid.Nil {
		il.ID = uuid.New()
	}
	return nil
}
