package db

import (
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Recall intake
		&types.Recall{},
		&types.RecallProduct{},

		// Risk classification
		&types.RiskConfigRecord{},

		// Monitoring
		&types.Investigation{},
		&types.MarketplaceListing{},
		&types.InvestigationListing{},
	)
}
