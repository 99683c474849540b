package recalls

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecallProduct struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecallID uuid.UUID `gorm:"type:uuid;not null;index" json:"recall_id"`

	Name        string `gorm:"column:name;not null" json:"name"`
	ModelNumber string `gorm:"column:model_number;index" json:"model_number,omitempty"`
	UPC         string `gorm:"column:upc;index" json:"upc,omitempty"`
	Category    string `gorm:"column:category;index" json:"category,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RecallProduct) TableName() string { return "recall_product" }

func (p *RecallProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
