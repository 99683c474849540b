package investigations

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Investigation is a recurring search for marketplace listings matching one
// or more recall targets. Lifecycle transitions are owned by the scheduler
// once the investigation is scheduled; counters are recomputed from join
// records at the end of each run, never incremented in place.
type Investigation struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null" json:"name"`

	TargetIDs      datatypes.JSON `gorm:"column:target_ids;type:jsonb" json:"target_ids"`
	MarketplaceIDs datatypes.JSON `gorm:"column:marketplace_ids;type:jsonb" json:"marketplace_ids"`
	Regions        datatypes.JSON `gorm:"column:regions;type:jsonb" json:"regions,omitempty"`

	ScheduleKind       string     `gorm:"column:schedule_kind;not null;index" json:"schedule_kind"`
	ScheduledStartTime time.Time  `gorm:"column:scheduled_start_time;not null;index" json:"scheduled_start_time"`
	StartTime          *time.Time `gorm:"column:start_time" json:"start_time,omitempty"`
	EndTime            *time.Time `gorm:"column:end_time" json:"end_time,omitempty"`

	Status    string `gorm:"column:status;not null;index" json:"status"`
	LastError string `gorm:"column:last_error;type:text" json:"last_error,omitempty"`

	ListingsFound  int `gorm:"column:listings_found;not null;default:0" json:"listings_found"`
	ListingsQueued int `gorm:"column:listings_queued;not null;default:0" json:"listings_queued"`

	CreatedBy string `gorm:"column:created_by;not null;default:'user'" json:"created_by"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Investigation) TableName() string { return "investigation" }

func (i *Investigation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (i *Investigation) Targets() []uuid.UUID {
	var out []uuid.UUID
	if len(i.TargetIDs) == 0 {
		return out
	}
	if err := json.Unmarshal(i.TargetIDs, &out); err != nil {
		return nil
	}
	return out
}

func (i *Investigation) SetTargets(ids []uuid.UUID) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	i.TargetIDs = datatypes.JSON(raw)
	return nil
}

func (i *Investigation) Marketplaces() []string {
	var out []string
	if len(i.MarketplaceIDs) == 0 {
		return out
	}
	if err := json.Unmarshal(i.MarketplaceIDs, &out); err != nil {
		return nil
	}
	return out
}

func (i *Investigation) SetMarketplaces(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	i.MarketplaceIDs = datatypes.JSON(raw)
	return nil
}

// Terminal reports whether the status admits no further transitions without
// operator action.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
