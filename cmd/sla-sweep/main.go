// sla-sweep runs one SLA breach sweep against the configured database and
// exits. With --tenant it also prints that tenant's support health breakdown.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/support-sla/internal/config"
	"github.com/spec-kit/support-sla/internal/events"
	"github.com/spec-kit/support-sla/internal/health"
	"github.com/spec-kit/support-sla/internal/observability"
	"github.com/spec-kit/support-sla/internal/persistence"
	"github.com/spec-kit/support-sla/internal/repository"
	"github.com/spec-kit/support-sla/internal/service"
	"github.com/spec-kit/support-sla/internal/sla"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("sla-sweep: %v", err)
	}
}

func run(args []string) error {
	var (
		tenantID   int64
		workers    int
		policyFile string
		skipSweep  bool
	)

	flagSet := pflag.NewFlagSet("sla-sweep", pflag.ContinueOnError)
	flagSet.Int64Var(&tenantID, "tenant", 0, "print the support health breakdown for this tenant")
	flagSet.IntVar(&workers, "workers", 0, "concurrent ticket checks (default SLA_SWEEP_WORKERS)")
	flagSet.StringVar(&policyFile, "policies", "", "SLA policy YAML file (default SLA_CONFIG_FILE)")
	flagSet.BoolVar(&skipSweep, "no-sweep", false, "skip the breach sweep")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if workers > 0 {
		cfg.SLA.SweepWorkers = workers
	}
	if policyFile != "" {
		cfg.SLA.PolicyFile = policyFile
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	pool := pg.PoolHandle()
	if pool == nil {
		return errors.New("POSTGRES_DSN is required")
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	ticketRepo := repository.NewTicketRepository(pool)
	eventLogRepo := repository.NewEventLogRepository(pool)

	if !skipSweep {
		policies, calendars, err := sla.LoadFile(cfg.SLA.PolicyFile)
		if err != nil {
			return err
		}
		lifecycle := service.NewTicketLifecycleService(service.LifecycleDependencies{
			TicketRepo:   ticketRepo,
			MessageRepo:  repository.NewTicketMessageRepository(pool),
			EventLogRepo: eventLogRepo,
			Dispatcher:   events.NewRedisDispatcher(nil, redis.Client, cfg.Notification.RedisChannel, logger),
			Planner:      sla.NewPlanner(policies, calendars),
			Logger:       logger,
		})
		result, err := service.NewSweepService(ticketRepo, lifecycle, cfg.SLA, logger, nil).Run(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		logger.Info("sweep finished",
			zap.Int("checked", result.Checked),
			zap.Int("breached", result.Breached),
			zap.Int("failed", result.Failed),
			zap.Bool("skipped", result.Skipped),
			zap.Duration("duration", result.Duration))
	}

	if tenantID > 0 {
		calc := health.NewCalculator(repository.NewTenantStatsReader(pool, eventLogRepo), nil, logger, nil, health.OptionsFromConfig(cfg.Health))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(calc.Breakdown(ctx, tenantID))
	}
	return nil
}
