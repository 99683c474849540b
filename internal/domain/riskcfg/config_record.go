package riskcfg

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConfigRecord is a versioned risk-classification config row. Payload holds
// the full validated config document; exactly one row is active at a time.
type ConfigRecord struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Version int       `gorm:"column:version;not null;index" json:"version"`
	Name    string    `gorm:"column:name;not null" json:"name"`
	Active  bool      `gorm:"column:active;not null;default:false;index" json:"active"`

	Payload datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ConfigRecord) TableName() string { return "risk_config" }

func (r *ConfigRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
