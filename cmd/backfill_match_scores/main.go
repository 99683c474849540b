package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/vigilhq/recallwatch-backend/internal/app"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/match"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

// Rescores stored listings against recall targets. Useful after the match
// weights change or a recall gains product details; the merge-upsert keeps
// whichever score is higher, so reruns are safe.
func main() {
	var recallFlags idList
	var marketplace string
	var dryRun bool
	var limit int
	flag.Var(&recallFlags, "recall", "recall id to score against (repeatable; default all)")
	flag.StringVar(&marketplace, "marketplace", "", "marketplace id whose listings to rescore")
	flag.BoolVar(&dryRun, "dry-run", false, "print planned updates without writing")
	flag.IntVar(&limit, "limit", 1000, "max listings to process")
	flag.Parse()

	if marketplace == "" {
		fmt.Println("usage: -marketplace is required")
		os.Exit(1)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	dbc := dbctx.Context{Ctx: context.Background()}

	var recallRows []*types.Recall
	if len(recallFlags) > 0 {
		ids := make([]uuid.UUID, 0, len(recallFlags))
		for _, s := range recallFlags {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err == nil && id != uuid.Nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			fmt.Println("no valid recall ids provided")
			return
		}
		recallRows, err = application.Repos.Recalls.GetByIDs(dbc, ids)
	} else {
		recallRows, err = application.Repos.Recalls.List(dbc, "", 1000, 0)
	}
	if err != nil {
		fmt.Printf("load recalls: %v\n", err)
		os.Exit(1)
	}
	if len(recallRows) == 0 {
		fmt.Println("no recalls to score against")
		return
	}

	targets := make([]match.Target, 0, len(recallRows))
	for _, r := range recallRows {
		t := match.Target{Manufacturer: r.Manufacturer}
		for _, p := range r.Products {
			t.Products = append(t.Products, match.TargetProduct{
				Name:        p.Name,
				ModelNumber: p.ModelNumber,
			})
		}
		targets = append(targets, t)
	}

	rows, err := application.Repos.Listings.ListByMarketplace(dbc, marketplace, limit, 0)
	if err != nil {
		fmt.Printf("load listings: %v\n", err)
		os.Exit(1)
	}

	scorer := match.NewScorer()
	updated := 0
	for _, row := range rows {
		best := 0.0
		var bestReasons []string
		for _, t := range targets {
			score, reasons := scorer.Score(t, row.Title, row.Description, row.Price)
			if score > best {
				best = score
				bestReasons = reasons
			}
		}
		if best <= row.MatchScore {
			continue
		}
		if dryRun {
			fmt.Printf("would rescore %s %.2f -> %.2f (%s)\n", row.ID, row.MatchScore, best, row.ListingURL)
			updated++
			continue
		}
		incoming := &types.MarketplaceListing{
			MarketplaceID: row.MarketplaceID,
			ListingURL:    row.ListingURL,
			MatchScore:    best,
		}
		if err := incoming.SetReasons(bestReasons); err != nil {
			fmt.Printf("encode reasons for %s: %v\n", row.ID, err)
			continue
		}
		if _, err := application.Repos.Listings.Upsert(dbc, incoming); err != nil {
			fmt.Printf("rescore %s: %v\n", row.ID, err)
			continue
		}
		updated++
	}

	fmt.Printf("processed %d listings, updated %d\n", len(rows), updated)
}
