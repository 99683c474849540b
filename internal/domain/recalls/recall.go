package recalls

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recall is an ingested recall/ban record. Numeric incident statistics are
// exposed to the risk engine through Field so the engine never depends on
// this concrete shape.
type Recall struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Source      string    `gorm:"column:source;not null;index" json:"source"`
	ExternalID  string    `gorm:"column:external_id;index" json:"external_id,omitempty"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`

	Manufacturer string `gorm:"column:manufacturer;index" json:"manufacturer,omitempty"`

	Injuries      int64 `gorm:"column:injuries;not null;default:0" json:"injuries"`
	Deaths        int64 `gorm:"column:deaths;not null;default:0" json:"deaths"`
	Incidents     int64 `gorm:"column:incidents;not null;default:0" json:"incidents"`
	UnitsAffected int64 `gorm:"column:units_affected;not null;default:0" json:"units_affected"`

	Hazards datatypes.JSON `gorm:"column:hazards;type:jsonb" json:"hazards,omitempty"`

	RiskLevel    string     `gorm:"column:risk_level;index" json:"risk_level,omitempty"`
	RiskScore    float64    `gorm:"column:risk_score;not null;default:0" json:"risk_score"`
	ClassifiedAt *time.Time `gorm:"column:classified_at" json:"classified_at,omitempty"`

	Products []RecallProduct `gorm:"constraint:OnDelete:CASCADE;foreignKey:RecallID;references:ID" json:"products,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Recall) TableName() string { return "recall" }

// BeforeCreate assigns the ID in the application so inserts work on any
// driver, sqlite included.
func (r *Recall) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Field resolves a logical field path to a numeric value. Unknown paths
// report ok=false and the caller treats the rule as non-matching.
func (r *Recall) Field(path string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(path)) {
	case "injuries":
		return float64(r.Injuries), true
	case "deaths":
		return float64(r.Deaths), true
	case "incidents":
		return float64(r.Incidents), true
	case "units_affected":
		return float64(r.UnitsAffected), true
	default:
		return 0, false
	}
}

// HazardTexts decodes the stored hazard description strings.
func (r *Recall) HazardTexts() []string {
	if len(r.Hazards) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(r.Hazards, &out); err != nil {
		return nil
	}
	return out
}

// SetHazardTexts stores hazard description strings as JSON.
func (r *Recall) SetHazardTexts(texts []string) error {
	raw, err := json.Marshal(texts)
	if err != nil {
		return err
	}
	r.Hazards = datatypes.JSON(raw)
	return nil
}
