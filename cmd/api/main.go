package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"balancebook/internal/interfaces/scheduler"
	"balancebook/internal/shared/config"
	"balancebook/internal/shared/logging"
	"balancebook/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.Log.Format, cfg.Log.Level, cfg.Telemetry.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(ctx); err != nil {
				slog.Error("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(scheduler.Config{
			Schedules: []scheduler.Schedule{
				{
					Name:  scheduler.ScheduleSnapshots,
					Times: cfg.Scheduler.SnapshotTimes,
					Jobs:  scheduler.SnapshotJobs(deps.SnapshotService, deps.LinkRepo, deps.AccountRepo),
				},
				{
					Name:  scheduler.ScheduleRates,
					Times: cfg.Scheduler.RateTimes,
					Jobs:  scheduler.ExchangeRateJobs(cfg.FX.RefreshDays, deps.Backfill),
				},
			},
			WorkerCount:  cfg.Scheduler.WorkerCount,
			JobDelay:     cfg.Scheduler.JobDelay,
			QueueSize:    cfg.Scheduler.QueueSize,
			RunOnStartup: cfg.Scheduler.RunOnStartup,
		})
		if err != nil {
			return err
		}
		sched.Start()
		slog.Info("scheduler started", slog.Time("next_run", sched.NextRun(time.Now())))
	} else {
		slog.Info("scheduler is disabled")
	}

	deps.CurrencyListener.Start(ctx)

	handler := SetupRoutes(deps, cfg)
	srv, redirectSrv, serverErr := StartServers(NewServerConfigFromConfig(handler, cfg))

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		slog.Error("server failed", slog.Any("error", err))
	}

	GracefulShutdown(srv, redirectSrv, sched, []Stopper{deps.CurrencyListener}, shutdownTimeout)
	return err
}
