package repos

import (
	"gorm.io/gorm"

	invrepo "github.com/vigilhq/recallwatch-backend/internal/data/repos/investigations"
	listingrepo "github.com/vigilhq/recallwatch-backend/internal/data/repos/listings"
	recallrepo "github.com/vigilhq/recallwatch-backend/internal/data/repos/recalls"
	riskcfgrepo "github.com/vigilhq/recallwatch-backend/internal/data/repos/riskcfg"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

type (
	RecallRepo               = recallrepo.RecallRepo
	InvestigationRepo        = invrepo.InvestigationRepo
	ListingRepo              = listingrepo.ListingRepo
	InvestigationListingRepo = listingrepo.InvestigationListingRepo
	RiskConfigRepo           = riskcfgrepo.RiskConfigRepo
)

// Set bundles every repository behind one injection point. The gorm-backed
// set is built here; tests swap in the memory set from repos/memory.
type Set struct {
	Recalls               RecallRepo
	Investigations        InvestigationRepo
	Listings              ListingRepo
	InvestigationListings InvestigationListingRepo
	RiskConfigs           RiskConfigRepo
}

func New(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Recalls:               recallrepo.NewRecallRepo(db, baseLog),
		Investigations:        invrepo.NewInvestigationRepo(db, baseLog),
		Listings:              listingrepo.NewListingRepo(db, baseLog),
		InvestigationListings: listingrepo.NewInvestigationListingRepo(db, baseLog),
		RiskConfigs:           riskcfgrepo.NewRiskConfigRepo(db, baseLog),
	}
}
