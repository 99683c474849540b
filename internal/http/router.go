package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/vigilhq/recallwatch-backend/internal/http/handlers"
	httpMW "github.com/vigilhq/recallwatch-backend/internal/http/middleware"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	RecallHandler        *httpH.RecallHandler
	InvestigationHandler *httpH.InvestigationHandler
	RiskConfigHandler    *httpH.RiskConfigHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("recallwatch"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Recalls
		if cfg.RecallHandler != nil {
			api.POST("/recalls", cfg.RecallHandler.Ingest)
			api.GET("/recalls", cfg.RecallHandler.ListRecalls)
			api.GET("/recalls/:id", cfg.RecallHandler.GetRecall)
			api.POST("/recalls/:id/classify", cfg.RecallHandler.Reclassify)
		}

		// Investigations
		if cfg.InvestigationHandler != nil {
			api.POST("/investigations", cfg.InvestigationHandler.Create)
			api.GET("/investigations", cfg.InvestigationHandler.List)
			api.GET("/investigations/:id", cfg.InvestigationHandler.Get)
			api.POST("/investigations/:id/cancel", cfg.InvestigationHandler.Cancel)
			api.POST("/investigations/:id/reschedule", cfg.InvestigationHandler.Reschedule)
			api.GET("/investigations/:id/listings", cfg.InvestigationHandler.Listings)
		}

		// Risk config
		if cfg.RiskConfigHandler != nil {
			api.GET("/risk-config", cfg.RiskConfigHandler.GetActive)
			api.PUT("/risk-config", cfg.RiskConfigHandler.Put)
			api.GET("/risk-config/versions", cfg.RiskConfigHandler.ListVersions)
		}
	}

	return r
}
