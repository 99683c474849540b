package domain

import (
	"github.com/vigilhq/recallwatch-backend/internal/domain/investigations"
	"github.com/vigilhq/recallwatch-backend/internal/domain/listings"
	"github.com/vigilhq/recallwatch-backend/internal/domain/recalls"
	"github.com/vigilhq/recallwatch-backend/internal/domain/riskcfg"
)

type (
	Recall        = recalls.Recall
	RecallProduct = recalls.RecallProduct

	Investigation = investigations.Investigation

	MarketplaceListing   = listings.MarketplaceListing
	InvestigationListing = listings.InvestigationListing

	RiskConfigRecord = riskcfg.ConfigRecord
)

const (
	InvestigationStatusScheduled = investigations.StatusScheduled
	InvestigationStatusRunning   = investigations.StatusRunning
	InvestigationStatusCompleted = investigations.StatusCompleted
	InvestigationStatusFailed    = investigations.StatusFailed
	InvestigationStatusCancelled = investigations.StatusCancelled

	LinkStatusFound  = listings.LinkStatusFound
	LinkStatusQueued = listings.LinkStatusQueued
)
