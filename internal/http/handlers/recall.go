package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/vigilhq/recallwatch-backend/internal/domain"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/services"
)

type RecallHandler struct {
	intake services.RecallIntakeService
}

func NewRecallHandler(intake services.RecallIntakeService) *RecallHandler {
	return &RecallHandler{intake: intake}
}

type recallProductRequest struct {
	Name        string `json:"name"`
	ModelNumber string `json:"model_number"`
	UPC         string `json:"upc"`
	Category    string `json:"category"`
}

type ingestRecallRequest struct {
	Source        string                 `json:"source"`
	ExternalID    string                 `json:"external_id"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	Manufacturer  string                 `json:"manufacturer"`
	Injuries      int64                  `json:"injuries"`
	Deaths        int64                  `json:"deaths"`
	Incidents     int64                  `json:"incidents"`
	UnitsAffected int64                  `json:"units_affected"`
	Hazards       []string               `json:"hazards"`
	Products      []recallProductRequest `json:"products"`

	// Marketplaces the auto-created investigation should search. Empty
	// falls back to the configured defaults.
	MarketplaceIDs []string `json:"marketplace_ids"`
}

// POST /api/recalls
func (rh *RecallHandler) Ingest(c *gin.Context) {
	var req ingestRecallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
		return
	}

	recall := &types.Recall{
		Source:        req.Source,
		ExternalID:    req.ExternalID,
		Title:         req.Title,
		Description:   req.Description,
		Manufacturer:  req.Manufacturer,
		Injuries:      req.Injuries,
		Deaths:        req.Deaths,
		Incidents:     req.Incidents,
		UnitsAffected: req.UnitsAffected,
	}
	if len(req.Hazards) > 0 {
		if err := recall.SetHazardTexts(req.Hazards); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_hazards", "detail": err.Error()})
			return
		}
	}
	for _, p := range req.Products {
		recall.Products = append(recall.Products, types.RecallProduct{
			Name:        p.Name,
			ModelNumber: p.ModelNumber,
			UPC:         p.UPC,
			Category:    p.Category,
		})
	}

	saved, inv, err := rh.intake.Ingest(dbctx.Context{Ctx: c.Request.Context()}, recall, req.MarketplaceIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ingest_failed", "detail": err.Error()})
		return
	}

	resp := gin.H{"recall": saved}
	if inv != nil {
		resp["investigation"] = inv
	}
	c.JSON(http.StatusCreated, resp)
}

// GET /api/recalls/:id
func (rh *RecallHandler) GetRecall(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	recall, err := rh.intake.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "get_recall_failed", "detail": err.Error()})
		return
	}
	if recall == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recall_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recall": recall})
}

// GET /api/recalls?risk_level=HIGH
func (rh *RecallHandler) ListRecalls(c *gin.Context) {
	limit, offset := pagination(c)
	recalls, err := rh.intake.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("risk_level"), limit, offset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "list_recalls_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recalls": recalls})
}

// POST /api/recalls/:id/classify
// Re-runs classification against the currently active config.
func (rh *RecallHandler) Reclassify(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	recall, err := rh.intake.Classify(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "classify_failed", "detail": err.Error()})
		return
	}
	if recall == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "recall_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recall": recall})
}
