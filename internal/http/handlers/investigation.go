package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/services"
)

type InvestigationHandler struct {
	invService services.InvestigationService
}

func NewInvestigationHandler(invService services.InvestigationService) *InvestigationHandler {
	return &InvestigationHandler{invService: invService}
}

type createInvestigationRequest struct {
	Name           string    `json:"name"`
	TargetIDs      []string  `json:"target_ids"`
	MarketplaceIDs []string  `json:"marketplace_ids"`
	ScheduleKind   string    `json:"schedule_kind"`
	StartTime      time.Time `json:"start_time"`
	CreatedBy      string    `json:"created_by"`
}

// POST /api/investigations
func (ih *InvestigationHandler) Create(c *gin.Context) {
	var req createInvestigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
		return
	}

	targetIDs := make([]uuid.UUID, 0, len(req.TargetIDs))
	for _, raw := range req.TargetIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_target_id", "detail": raw})
			return
		}
		targetIDs = append(targetIDs, id)
	}

	inv, err := ih.invService.Create(dbctx.Context{Ctx: c.Request.Context()}, services.CreateInvestigationParams{
		Name:           req.Name,
		TargetIDs:      targetIDs,
		MarketplaceIDs: req.MarketplaceIDs,
		ScheduleKind:   req.ScheduleKind,
		StartTime:      req.StartTime,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "create_investigation_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"investigation": inv})
}

// GET /api/investigations/:id
func (ih *InvestigationHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	inv, err := ih.invService.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "get_investigation_failed", "detail": err.Error()})
		return
	}
	if inv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "investigation_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"investigation": inv})
}

// GET /api/investigations?status=scheduled
func (ih *InvestigationHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	invs, err := ih.invService.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "list_investigations_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"investigations": invs})
}

// POST /api/investigations/:id/cancel
func (ih *InvestigationHandler) Cancel(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	inv, err := ih.invService.Cancel(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cancel_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"investigation": inv})
}

// POST /api/investigations/:id/reschedule
// body: { "start_time": "2026-01-02T09:00:00Z" } (optional; defaults to
// the original anchor)
func (ih *InvestigationHandler) Reschedule(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req struct {
		StartTime *time.Time `json:"start_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
		return
	}
	inv, err := ih.invService.Reschedule(dbctx.Context{Ctx: c.Request.Context()}, id, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reschedule_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"investigation": inv})
}

// GET /api/investigations/:id/listings
func (ih *InvestigationHandler) Listings(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	links, err := ih.invService.Listings(dbctx.Context{Ctx: c.Request.Context()}, id, limit, offset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "list_listings_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": links})
}
