package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-sla/internal/api/http"
	"github.com/spec-kit/support-sla/internal/api/http/handlers"
	"github.com/spec-kit/support-sla/internal/auth"
	"github.com/spec-kit/support-sla/internal/config"
	"github.com/spec-kit/support-sla/internal/events"
	"github.com/spec-kit/support-sla/internal/health"
	"github.com/spec-kit/support-sla/internal/observability"
	"github.com/spec-kit/support-sla/internal/persistence"
	"github.com/spec-kit/support-sla/internal/repository"
	"github.com/spec-kit/support-sla/internal/service"
	"github.com/spec-kit/support-sla/internal/sla"
	"github.com/spec-kit/support-sla/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("")

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("postgres is required; set POSTGRES_DSN")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	policies, calendars, err := sla.LoadFile(cfg.SLA.PolicyFile)
	if err != nil {
		logger.Fatal("failed to load sla policies", zap.Error(err))
	}

	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	eventLogRepo := repository.NewEventLogRepository(pool)
	statsReader := repository.NewTenantStatsReader(pool, eventLogRepo)

	dispatcher := events.NewRedisDispatcher(events.NewInMemoryDispatcher(), redis.Client, cfg.Notification.RedisChannel, logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationService.RegisterHandlers()

	planner := sla.NewPlanner(policies, calendars)
	lifecycleService := service.NewTicketLifecycleService(service.LifecycleDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  messageRepo,
		EventLogRepo: eventLogRepo,
		Dispatcher:   dispatcher,
		Clock:        sla.NewClock(nil),
		Planner:      planner,
		Logger:       logger,
		Metrics:      metrics,
	})
	sweepService := service.NewSweepService(ticketRepo, lifecycleService, cfg.SLA, logger, metrics)
	calculator := health.NewCalculator(statsReader, health.NewRedisCache(redis.Client, redis.Key("health")), logger, metrics, health.OptionsFromConfig(cfg.Health))

	scheduler, err := worker.NewSweepScheduler(sweepService, cfg.SLA.SweepSchedule, logger)
	if err != nil {
		logger.Fatal("failed to schedule sla sweep", zap.Error(err))
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Tickets:        handlers.NewTicketsHandler(lifecycleService),
		Tenants:        handlers.NewTenantsHandler(calculator, sweepService),
		SLAPolicies:    handlers.NewSLAPoliciesHandler(planner),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
