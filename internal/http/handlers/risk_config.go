package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/risk"
	"github.com/vigilhq/recallwatch-backend/internal/services"
)

type RiskConfigHandler struct {
	configs services.RiskConfigService
}

func NewRiskConfigHandler(configs services.RiskConfigService) *RiskConfigHandler {
	return &RiskConfigHandler{configs: configs}
}

// GET /api/risk-config
func (rh *RiskConfigHandler) GetActive(c *gin.Context) {
	rec, err := rh.configs.ActiveRecord(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "get_config_failed", "detail": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_active_config"})
		return
	}
	cfg, err := risk.ParseJSON(rec.Payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored_config_corrupt", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"version": rec.Version,
		"name":    rec.Name,
		"config":  cfg,
	})
}

// PUT /api/risk-config
// body: { "name": "...", "config": { ... } }
// Validates and activates a new config version. A validation failure
// leaves the previous version active and reports every violation.
func (rh *RiskConfigHandler) Put(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read_body_failed", "detail": err.Error()})
		return
	}

	var envelope struct {
		Name   string          `json:"name"`
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
		return
	}
	if len(envelope.Config) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "config_required"})
		return
	}

	cfg, err := risk.ParseJSON(envelope.Config)
	if err != nil {
		var verr *risk.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_config", "violations": verr.Violations})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_config", "detail": err.Error()})
		return
	}

	rec, err := rh.configs.Save(dbctx.Context{Ctx: c.Request.Context()}, cfg, envelope.Name)
	if err != nil {
		var verr *risk.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_config", "violations": verr.Violations})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "save_config_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": rec.Version, "name": rec.Name})
}

// GET /api/risk-config/versions
func (rh *RiskConfigHandler) ListVersions(c *gin.Context) {
	recs, err := rh.configs.ListVersions(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "list_versions_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": recs})
}
