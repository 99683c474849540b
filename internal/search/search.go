package search

import (
	"context"

	types "github.com/vigilhq/recallwatch-backend/internal/domain"
)

// Candidate is one raw marketplace result before dedup and scoring.
type Candidate struct {
	Title       string
	Description string
	URL         string
	ImageURL    string
	SellerName  string
	Price       *float64
	Currency    string
}

// Provider searches one marketplace for listings related to a recall
// target. Implementations may be real scrapers, marketplace APIs, or the
// stub; the runner is agnostic. Calls must honor ctx deadlines: the runner
// applies a per-call timeout and treats a timeout as a partial failure.
type Provider interface {
	Search(ctx context.Context, marketplaceID, query string, target *types.Recall) ([]Candidate, error)
}
