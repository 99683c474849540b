package search

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/time/rate"

	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

// StubProvider fabricates plausible marketplace results. Output is
// deterministic per (marketplace, query) so tests and demos are stable, and
// a share of the candidates deliberately carry the target's product name or
// model number so downstream scoring has something to find.
type StubProvider struct {
	log     *logger.Logger
	limiter *rate.Limiter
}

func NewStubProvider(baseLog *logger.Logger, searchesPerSecond float64) *StubProvider {
	if searchesPerSecond <= 0 {
		searchesPerSecond = 5
	}
	return &StubProvider{
		log:     baseLog.With("service", "StubSearchProvider"),
		limiter: rate.NewLimiter(rate.Limit(searchesPerSecond), 1),
	}
}

func (p *StubProvider) Search(ctx context.Context, marketplaceID, query string, target *types.Recall) ([]Candidate, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search rate limit: %w", err)
	}

	faker := gofakeit.New(seedFor(marketplaceID, query))
	count := 3 + faker.Number(0, 5)

	var model, product string
	if target != nil && len(target.Products) > 0 {
		product = target.Products[0].Name
		model = target.Products[0].ModelNumber
	}
	if product == "" {
		product = query
	}

	out := make([]Candidate, 0, count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := Candidate{
			URL:        fmt.Sprintf("https://%s.example.com/item/%s", marketplaceID, strings.ToLower(faker.LetterN(10))),
			ImageURL:   fmt.Sprintf("https://img.%s.example.com/%s.jpg", marketplaceID, strings.ToLower(faker.LetterN(8))),
			SellerName: faker.Username(),
			Currency:   "USD",
		}
		price := faker.Price(2, 250)
		c.Price = &price

		// Roughly half the results reference the target; the rest are noise.
		switch i % 4 {
		case 0:
			c.Title = fmt.Sprintf("%s %s", product, faker.ProductName())
			c.Description = fmt.Sprintf("%s Model %s in %s condition.", faker.ProductDescription(), model, faker.RandomString([]string{"new", "used", "like new"}))
		case 1:
			c.Title = product
			c.Description = faker.ProductDescription()
		default:
			c.Title = faker.ProductName()
			c.Description = faker.ProductDescription()
		}
		out = append(out, c)
	}
	p.log.Debug("stub search produced candidates", "marketplace_id", marketplaceID, "query", query, "count", len(out))
	return out, nil
}

func seedFor(marketplaceID, query string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(marketplaceID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(query))
	return int64(h.Sum64())
}
