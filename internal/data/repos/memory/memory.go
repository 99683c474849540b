// Package memory holds in-memory implementations of every repository
// interface. They mirror the persistence semantics the gorm repos provide
// (guarded transitions, merge-upsert, idempotent links) so core logic can be
// exercised without a database. Selection is by injection only; nothing in
// the codebase reaches for these through global state.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigilhq/recallwatch-backend/internal/data/repos"
	listingrepo "github.com/vigilhq/recallwatch-backend/internal/data/repos/listings"
	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
)

// NewSet returns a repos.Set backed entirely by process memory.
func NewSet() repos.Set {
	return repos.Set{
		Recalls:               NewRecallRepo(),
		Investigations:        NewInvestigationRepo(),
		Listings:              NewListingRepo(),
		InvestigationListings: NewInvestigationListingRepo(),
		RiskConfigs:           NewRiskConfigRepo(),
	}
}

type recallRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.Recall
}

func NewRecallRepo() repos.RecallRepo {
	return &recallRepo{rows: make(map[uuid.UUID]*types.Recall)}
}

func (r *recallRepo) Create(_ dbctx.Context, recall *types.Recall) (*types.Recall, error) {
	if recall == nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if recall.ID == uuid.Nil {
		recall.ID = uuid.New()
	}
	now := time.Now().UTC()
	if recall.CreatedAt.IsZero() {
		recall.CreatedAt = now
	}
	recall.UpdatedAt = now
	for i := range recall.Products {
		if recall.Products[i].ID == uuid.Nil {
			recall.Products[i].ID = uuid.New()
		}
		recall.Products[i].RecallID = recall.ID
	}
	cp := *recall
	r.rows[recall.ID] = &cp
	return recall, nil
}

func (r *recallRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Recall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *recallRepo) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*types.Recall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Recall
	for _, id := range ids {
		if row, ok := r.rows[id]; ok {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *recallRepo) List(_ dbctx.Context, riskLevel string, limit, offset int) ([]*types.Recall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Recall
	for _, row := range r.rows {
		if riskLevel != "" && row.RiskLevel != riskLevel {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return window(out, limit, offset), nil
}

func (r *recallRepo) UpdateClassification(_ dbctx.Context, id uuid.UUID, level string, score float64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil
	}
	row.RiskLevel = level
	row.RiskScore = score
	row.ClassifiedAt = &at
	row.UpdatedAt = time.Now().UTC()
	return nil
}

type investigationRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.Investigation
}

func NewInvestigationRepo() repos.InvestigationRepo {
	return &investigationRepo{rows: make(map[uuid.UUID]*types.Investigation)}
}

func (r *investigationRepo) Create(_ dbctx.Context, inv *types.Investigation) (*types.Investigation, error) {
	if inv == nil {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	now := time.Now().UTC()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	cp := *inv
	r.rows[inv.ID] = &cp
	return inv, nil
}

func (r *investigationRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Investigation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *investigationRepo) List(_ dbctx.Context, status string, limit, offset int) ([]*types.Investigation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Investigation
	for _, row := range r.rows {
		if status != "" && row.Status != status {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return window(out, limit, offset), nil
}

func (r *investigationRepo) Save(_ dbctx.Context, inv *types.Investigation) error {
	if inv == nil || inv.ID == uuid.Nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	inv.UpdatedAt = time.Now().UTC()
	cp := *inv
	r.rows[inv.ID] = &cp
	return nil
}

func (r *investigationRepo) TransitionStatus(_ dbctx.Context, id uuid.UUID, allowedFrom []string, updates map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range allowedFrom {
		if row.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	applyInvestigationUpdates(row, updates)
	row.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *investigationRepo) UpdateCounters(_ dbctx.Context, id uuid.UUID, found, queued int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.ListingsFound = found
		row.ListingsQueued = queued
		row.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *investigationRepo) Delete(_ dbctx.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

// applyInvestigationUpdates interprets the column-name update maps the gorm
// repo accepts, so both implementations honor the same call sites.
func applyInvestigationUpdates(row *types.Investigation, updates map[string]interface{}) {
	for col, val := range updates {
		switch col {
		case "status":
			if s, ok := val.(string); ok {
				row.Status = s
			}
		case "start_time":
			row.StartTime = asTimePtr(val)
		case "end_time":
			row.EndTime = asTimePtr(val)
		case "scheduled_start_time":
			if t := asTimePtr(val); t != nil {
				row.ScheduledStartTime = *t
			}
		case "last_error":
			if s, ok := val.(string); ok {
				row.LastError = s
			}
		}
	}
}

func asTimePtr(val interface{}) *time.Time {
	switch t := val.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}

type listingKey struct {
	marketplaceID string
	listingURL    string
}

type listingRepo struct {
	mu    sync.Mutex
	byKey map[listingKey]*types.MarketplaceListing
	byID  map[uuid.UUID]*types.MarketplaceListing
}

func NewListingRepo() repos.ListingRepo {
	return &listingRepo{
		byKey: make(map[listingKey]*types.MarketplaceListing),
		byID:  make(map[uuid.UUID]*types.MarketplaceListing),
	}
}

func (r *listingRepo) GetByKey(_ dbctx.Context, marketplaceID, listingURL string) (*types.MarketplaceListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byKey[listingKey{marketplaceID, listingURL}]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *listingRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.MarketplaceListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *listingRepo) Upsert(_ dbctx.Context, incoming *types.MarketplaceListing) (*types.MarketplaceListing, error) {
	if incoming == nil || incoming.MarketplaceID == "" || incoming.ListingURL == "" {
		return nil, errInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := listingKey{incoming.MarketplaceID, incoming.ListingURL}
	now := time.Now().UTC()
	existing, ok := r.byKey[key]
	if !ok {
		cp := *incoming
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		if cp.FirstSeenAt.IsZero() {
			cp.FirstSeenAt = now
		}
		cp.LastSeenAt = now
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		r.byKey[key] = &cp
		r.byID[cp.ID] = &cp
		out := cp
		return &out, nil
	}

	listingrepo.MergeListing(existing, incoming, now)
	out := *existing
	return &out, nil
}

func (r *listingRepo) ListByMarketplace(_ dbctx.Context, marketplaceID string, limit, offset int) ([]*types.MarketplaceListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.MarketplaceListing
	for _, row := range r.byID {
		if marketplaceID != "" && row.MarketplaceID != marketplaceID {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return window(out, limit, offset), nil
}

type linkKey struct {
	investigationID uuid.UUID
	listingID       uuid.UUID
}

type investigationListingRepo struct {
	mu    sync.Mutex
	byKey map[linkKey]*types.InvestigationListing
	byID  map[uuid.UUID]*types.InvestigationListing
}

func NewInvestigationListingRepo() repos.InvestigationListingRepo {
	return &investigationListingRepo{
		byKey: make(map[linkKey]*types.InvestigationListing),
		byID:  make(map[uuid.UUID]*types.InvestigationListing),
	}
}

func (r *investigationListingRepo) Link(_ dbctx.Context, link *types.InvestigationListing) (*types.InvestigationListing, error) {
	if link == nil || link.InvestigationID == uuid.Nil || link.ListingID == uuid.Nil {
		return nil, errInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := linkKey{link.InvestigationID, link.ListingID}
	now := time.Now().UTC()
	if existing, ok := r.byKey[key]; ok {
		if link.Metadata != nil {
			existing.Metadata = link.Metadata
		}
		existing.UpdatedAt = now
		cp := *existing
		return &cp, nil
	}
	cp := *link
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.Status == "" {
		cp.Status = types.LinkStatusFound
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.byKey[key] = &cp
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *investigationListingRepo) ListByInvestigation(_ dbctx.Context, investigationID uuid.UUID, limit, offset int) ([]*types.InvestigationListing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.InvestigationListing
	for _, row := range r.byID {
		if row.InvestigationID != investigationID {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return window(out, limit, offset), nil
}

func (r *investigationListingRepo) CountByInvestigation(_ dbctx.Context, investigationID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, row := range r.byID {
		if row.InvestigationID == investigationID {
			count++
		}
	}
	return count, nil
}

func (r *investigationListingRepo) CountByInvestigationAndStatus(_ dbctx.Context, investigationID uuid.UUID, status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, row := range r.byID {
		if row.InvestigationID == investigationID && row.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *investigationListingRepo) UpdateStatus(_ dbctx.Context, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.byID[id]; ok {
		row.Status = status
		row.UpdatedAt = time.Now().UTC()
	}
	return nil
}

type riskConfigRepo struct {
	mu   sync.Mutex
	rows []*types.RiskConfigRecord
}

func NewRiskConfigRepo() repos.RiskConfigRepo {
	return &riskConfigRepo{}
}

func (r *riskConfigRepo) GetActive(_ dbctx.Context) (*types.RiskConfigRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].Active {
			cp := *r.rows[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *riskConfigRepo) SaveNewVersion(_ dbctx.Context, record *types.RiskConfigRecord) (*types.RiskConfigRecord, error) {
	if record == nil {
		return nil, errInvalid
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		row.Active = false
	}
	version := 0
	for _, row := range r.rows {
		if row.Version > version {
			version = row.Version
		}
	}
	cp := *record
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.Version = version + 1
	cp.Active = true
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.rows = append(r.rows, &cp)
	out := cp
	record.Version = cp.Version
	record.Active = true
	return &out, nil
}

func (r *riskConfigRepo) ListVersions(_ dbctx.Context, limit int) ([]*types.RiskConfigRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.RiskConfigRecord
	for i := len(r.rows) - 1; i >= 0; i-- {
		cp := *r.rows[i]
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func window[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
