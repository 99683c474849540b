package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	redisclient "github.com/vigilhq/recallwatch-backend/internal/clients/redis"
	"github.com/vigilhq/recallwatch-backend/internal/data/db"
	"github.com/vigilhq/recallwatch-backend/internal/data/repos"
	"github.com/vigilhq/recallwatch-backend/internal/events"
	httpserver "github.com/vigilhq/recallwatch-backend/internal/http"
	httpH "github.com/vigilhq/recallwatch-backend/internal/http/handlers"
	"github.com/vigilhq/recallwatch-backend/internal/match"
	"github.com/vigilhq/recallwatch-backend/internal/observability"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/dbctx"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
	"github.com/vigilhq/recallwatch-backend/internal/schedule"
	"github.com/vigilhq/recallwatch-backend/internal/search"
	"github.com/vigilhq/recallwatch-backend/internal/services"
)

type Services struct {
	RiskConfigs    services.RiskConfigService
	Investigations services.InvestigationService
	Intake         services.RecallIntakeService
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    repos.Set
	Services Services

	scheduler    *schedule.Scheduler
	trigger      *schedule.TimerTrigger
	bus          events.Publisher
	server       *httpserver.Server
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.Init(context.Background(), log, observability.Config{
		ServiceName: "recallwatch",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})

	dbService, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	reposet := repos.New(theDB, log)

	// Run bus is optional; without REDIS_ADDR events are dropped.
	var bus events.Publisher = events.NopPublisher{}
	if rb, err := redisclient.NewRunBus(log); err != nil {
		log.Warn("Run bus unavailable, events will be dropped", "error", err)
	} else {
		bus = rb
	}

	riskConfigService := services.NewRiskConfigService(log, reposet.RiskConfigs)
	if err := riskConfigService.SeedIfEmpty(dbctx.Context{Ctx: context.Background()}, cfg.RiskConfigPath); err != nil {
		log.Warn("Could not seed default risk config", "error", err, "path", cfg.RiskConfigPath)
	}

	provider := search.NewStubProvider(log, cfg.SearchesPerSecond)
	runner := services.NewInvestigationRunner(
		log,
		reposet.Recalls,
		reposet.Investigations,
		reposet.Listings,
		reposet.InvestigationListings,
		provider,
		match.NewScorer(),
		cfg.SearchTimeout,
		cfg.QueueThreshold,
	)

	trigger := schedule.NewTimerTrigger(log)
	scheduler := schedule.NewScheduler(log, reposet.Investigations, trigger, runner, bus)

	invService := services.NewInvestigationService(log, reposet.Investigations, reposet.InvestigationListings, scheduler, bus)
	intakeService := services.NewRecallIntakeService(log, reposet.Recalls, riskConfigService, invService, cfg.DefaultMarketplaces)

	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:                  log,
		RecallHandler:        httpH.NewRecallHandler(intakeService),
		InvestigationHandler: httpH.NewInvestigationHandler(invService),
		RiskConfigHandler:    httpH.NewRiskConfigHandler(riskConfigService),
		HealthHandler:        httpH.NewHealthHandler(),
	})

	return &App{
		Log:    log,
		DB:     theDB,
		Router: server.Engine,
		Cfg:    cfg,
		Repos:  reposet,
		Services: Services{
			RiskConfigs:    riskConfigService,
			Investigations: invService,
			Intake:         intakeService,
		},
		scheduler:    scheduler,
		trigger:      trigger,
		bus:          bus,
		server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Start re-arms triggers for investigations that were scheduled when the
// process last stopped.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if err := a.Services.Investigations.RestoreTriggers(ctx); err != nil {
		a.Log.Warn("Restoring investigation triggers failed", "error", err)
	}

	if a.Cfg.LogRunEvents {
		if rb, ok := a.bus.(redisclient.RunBus); ok {
			if err := rb.StartForwarder(ctx, func(ev events.RunEvent) {
				a.Log.Info("run event",
					"kind", ev.Kind,
					"investigation_id", ev.InvestigationID,
					"message", ev.Message)
			}); err != nil {
				a.Log.Warn("Run event forwarder unavailable", "error", err)
			}
		}
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.trigger != nil {
		a.trigger.Shutdown()
	}
	if rb, ok := a.bus.(redisclient.RunBus); ok {
		_ = rb.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
