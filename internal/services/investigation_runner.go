package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/match"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
	"github.com/vigilhq/recallwatch-backend/internal/search"
)

// DefaultQueueThreshold is the match score at which a discovered listing is
// queued for human review rather than just recorded.
const DefaultQueueThreshold = 0.6

const defaultSearchConcurrency = 4

// InvestigationRunner executes one investigation pass: search every
// (target, marketplace) pair, score the candidates, merge them into the
// canonical listing store, link them to the investigation, and recompute
// the counters from the join records. Individual marketplace failures are
// collected as partial failures; the run only errors when nothing at all
// succeeded.
type InvestigationRunner struct {
	log     *logger.Logger
	recalls repos.RecallRepo
	invs    repos.InvestigationRepo
	list    repos.ListingRepo
	links   repos.InvestigationListingRepo

	provider search.Provider
	scorer   *match.Scorer

	searchTimeout  time.Duration
	queueThreshold float64
	concurrency    int
}

func NewInvestigationRunner(
	baseLog *logger.Logger,
	recalls repos.RecallRepo,
	invs repos.InvestigationRepo,
	list repos.ListingRepo,
	links repos.InvestigationListingRepo,
	provider search.Provider,
	scorer *match.Scorer,
	searchTimeout time.Duration,
	queueThreshold float64,
) *InvestigationRunner {
	if searchTimeout <= 0 {
		searchTimeout = 30 * time.Second
	}
	if queueThreshold <= 0 {
		queueThreshold = DefaultQueueThreshold
	}
	return &InvestigationRunner{
		log:            baseLog.With("service", "InvestigationRunner"),
		recalls:        recalls,
		invs:           invs,
		list:           list,
		links:          links,
		provider:       provider,
		scorer:         scorer,
		searchTimeout:  searchTimeout,
		queueThreshold: queueThreshold,
		concurrency:    defaultSearchConcurrency,
	}
}

type searchFailure struct {
	MarketplaceID string
	TargetID      string
	Err           error
}

func (r *InvestigationRunner) Run(ctx context.Context, inv *types.Investigation) error {
	if inv == nil {
		return fmt.Errorf("investigation required")
	}
	dbc := dbctx.From(ctx)
	log := r.log.With("investigation_id", inv.ID)

	targets, err := r.recalls.GetByIDs(dbc, inv.Targets())
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}
	marketplaces := inv.Marketplaces()
	if len(targets) == 0 || len(marketplaces) == 0 {
		return fmt.Errorf("investigation has no targets or marketplaces")
	}

	var (
		mu       sync.Mutex
		failures []searchFailure
		searched int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, target := range targets {
		for _, marketplaceID := range marketplaces {
			target, marketplaceID := target, marketplaceID
			g.Go(func() error {
				sctx, span := otel.Tracer("investigation_runner").Start(gctx, "marketplace.search",
					trace.WithAttributes(
						attribute.String("marketplace.id", marketplaceID),
						attribute.String("recall.id", target.ID.String()),
					))
				err := r.searchOne(sctx, inv, target, marketplaceID)
				if err != nil {
					span.RecordError(err)
					span.SetStatus(codes.Error, "marketplace search failed")
				}
				span.End()
				mu.Lock()
				defer mu.Unlock()
				searched++
				if err != nil {
					// Partial failure: siblings keep going.
					failures = append(failures, searchFailure{
						MarketplaceID: marketplaceID,
						TargetID:      target.ID.String(),
						Err:           err,
					})
					log.Warn("marketplace search failed",
						"marketplace_id", marketplaceID,
						"target_id", target.ID,
						"error", err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(failures) == searched {
		return fmt.Errorf("all %d marketplace searches failed, first error: %w", searched, failures[0].Err)
	}

	// Counters are derived by counting join records, never incremented in
	// flight, so concurrent upserts cannot drift them.
	found, err := r.links.CountByInvestigation(dbc, inv.ID)
	if err != nil {
		return fmt.Errorf("count links: %w", err)
	}
	queued, err := r.links.CountByInvestigationAndStatus(dbc, inv.ID, types.LinkStatusQueued)
	if err != nil {
		return fmt.Errorf("count queued links: %w", err)
	}
	if err := r.invs.UpdateCounters(dbc, inv.ID, int(found), int(queued)); err != nil {
		return fmt.Errorf("update counters: %w", err)
	}

	log.Info("investigation run finished",
		"searches", searched,
		"failures", len(failures),
		"listings_found", found,
		"listings_queued", queued)
	return nil
}

func (r *InvestigationRunner) searchOne(ctx context.Context, inv *types.Investigation, target *types.Recall, marketplaceID string) error {
	query := searchQuery(target)

	callCtx, cancel := context.WithTimeout(ctx, r.searchTimeout)
	defer cancel()
	candidates, err := r.provider.Search(callCtx, marketplaceID, query, target)
	if err != nil {
		return err
	}

	dbc := dbctx.From(ctx)
	scoreTarget := matchTarget(target)
	for _, c := range candidates {
		score, reasons := r.scorer.Score(scoreTarget, c.Title, c.Description, c.Price)

		listing := &types.MarketplaceListing{
			MarketplaceID: marketplaceID,
			ListingURL:    c.URL,
			Title:         c.Title,
			Description:   c.Description,
			ImageURL:      c.ImageURL,
			SellerName:    c.SellerName,
			Price:         c.Price,
			Currency:      c.Currency,
			MatchScore:    score,
		}
		if err := listing.SetReasons(reasons); err != nil {
			return fmt.Errorf("encode match reasons: %w", err)
		}
		canonical, err := r.list.Upsert(dbc, listing)
		if err != nil {
			return fmt.Errorf("upsert listing: %w", err)
		}

		status := types.LinkStatusFound
		if canonical.MatchScore >= r.queueThreshold {
			status = types.LinkStatusQueued
		}
		metadata, _ := json.Marshal(map[string]interface{}{
			"marketplace_id":     marketplaceID,
			"query":              query,
			"target_id":          target.ID,
			"score_at_discovery": score,
		})
		if _, err := r.links.Link(dbc, &types.InvestigationListing{
			InvestigationID: inv.ID,
			ListingID:       canonical.ID,
			Status:          status,
			AddedBy:         "system",
			Source:          marketplaceID,
			Metadata:        datatypes.JSON(metadata),
		}); err != nil {
			return fmt.Errorf("link listing: %w", err)
		}
	}
	return nil
}

func searchQuery(target *types.Recall) string {
	if len(target.Products) > 0 && target.Products[0].Name != "" {
		return target.Products[0].Name
	}
	return target.Title
}

func matchTarget(target *types.Recall) match.Target {
	out := match.Target{Manufacturer: target.Manufacturer}
	for _, p := range target.Products {
		out.Products = append(out.Products, match.TargetProduct{
			Name:        p.Name,
			ModelNumber: p.ModelNumber,
		})
	}
	return out
}
