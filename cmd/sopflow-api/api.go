// Package main provides the SOPFlow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"

	"github.com/sopflow/sopflow/pkg/config"
	"github.com/sopflow/sopflow/pkg/eventbus"
	"github.com/sopflow/sopflow/pkg/execution"
	"github.com/sopflow/sopflow/pkg/persistence"
	"github.com/sopflow/sopflow/pkg/services"
	"github.com/sopflow/sopflow/pkg/tags"
	"github.com/sopflow/sopflow/pkg/viewsync"
	"github.com/sopflow/sopflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	oracle      tags.Oracle
	settings    config.Settings
	validate    *validator.Validate
	sweeper     *cron.Cron
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	oracle tags.Oracle,
	settings config.Settings,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		oracle:      oracle,
		settings:    settings,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	engine := execution.NewEngine(
		a.logger,
		a.persistence.Sessions(),
		a.oracle,
		a.eventBus,
		otel.Tracer("sopflow-api"),
	)

	coordinator := viewsync.NewCoordinator(
		a.logger,
		a.persistence.Sessions(),
		a.persistence.Heartbeats(),
		a.oracle,
		viewsync.Intervals{
			Poll:            a.settings.Sync.PollInterval,
			Heartbeat:       a.settings.Sync.HeartbeatInterval,
			HeartbeatExpiry: a.settings.Sync.HeartbeatExpiry,
			Overlay:         a.settings.Sync.OverlayInterval,
		},
	)

	processService := services.NewProcess(a.logger, a.persistence)
	sessionService := services.NewSession(a.logger, processService, engine, coordinator, a.persistence)

	handlers := web.NewAPIHandlers(processService, sessionService, a.oracle, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("SOPFlow API")
	})

	api := app.Group("/api")

	p := api.Group("/processes")
	p.Get("/", handlers.GetProcesses)
	p.Post("/", handlers.CreateProcess)
	p.Get("/:id", handlers.GetProcess)
	p.Put("/:id", handlers.UpdateProcess)
	p.Delete("/:id", handlers.DeleteProcess)

	// Session endpoints:
	p.Get("/:id/session", handlers.GetSession)
	p.Post("/:id/session/open", handlers.OpenSession)
	p.Post("/:id/session/start", handlers.StartElement)
	p.Post("/:id/session/complete", handlers.CompleteElement)
	p.Post("/:id/session/finish", handlers.FinishSession)
	p.Post("/:id/session/abort", handlers.AbortSession)
	p.Post("/:id/session/restart", handlers.RestartSession)
	p.Patch("/:id/session/note", handlers.EditNote)
	p.Get("/:id/session/gates", handlers.GetGates)
	p.Get("/:id/session/export", handlers.ExportSessionCSV)
	p.Post("/:id/session/review", handlers.ReviewSession)

	api.Get("/tags/values", handlers.GetTagValues)
	api.Get("/oracle/status", handlers.GetOracleStatus)
	api.Post("/heartbeat", handlers.Heartbeat)

	app.Get("/health", handlers.HealthCheck)

	return app
}

// startSweeper prunes aged-out heartbeat records in the background so the
// liveness table stays bounded even when no viewer is polling.
func (a *API) startSweeper(ctx context.Context) {
	a.sweeper = cron.New()

	_, err := a.sweeper.AddFunc("@every 30s", func() {
		err := a.persistence.Heartbeats().Sweep(ctx, time.Now(), a.settings.Sync.HeartbeatExpiry)
		if err != nil {
			a.logger.WarnContext(ctx, "Heartbeat sweep failed", "error", err)
		}
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to schedule heartbeat sweep", "error", err)

		return
	}

	a.sweeper.Start()
}

func (a *API) Start(ctx context.Context, port int) error {
	a.startSweeper(ctx)

	if a.sweeper != nil {
		defer a.sweeper.Stop()
	}

	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
