// Command scheduler runs the dispatch and follower-stats jobs on cron
// schedules. It calls the same code paths as the HTTP trigger endpoints.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/bootstrap"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/database"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"github.com/robfig/cron/v3"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "x-follower-maker-scheduler",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	if err := database.VerifySchema(context.Background(), db); err != nil {
		log.Fatalf("Database not migrated, run cmd/migrate first: %v", err)
	}
	comps, err := bootstrap.BuildComponents(cfg, db, rdb, bootstrap.Overrides{})
	if err != nil {
		log.Fatalf("Failed to build components: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SkipIfStillRunning keeps one run per job in flight; overlapping
	// schedulers are still safe because every status change is guarded.
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	if _, err := c.AddFunc(cfg.CronDispatchSchedule, func() {
		summary, err := comps.Dispatch.Run(ctx)
		if err != nil {
			slog.Error("scheduled dispatch aborted", "error", err)
			return
		}
		slog.Info("scheduled dispatch finished",
			"run_id", summary.RunID, "total", summary.Total,
			"succeeded", summary.Succeeded, "failed", summary.Failed, "skipped", summary.Skipped)
	}); err != nil {
		log.Fatalf("Invalid CRON_DISPATCH_SCHEDULE %q: %v", cfg.CronDispatchSchedule, err)
	}

	if _, err := c.AddFunc(cfg.CronFollowerSchedule, func() {
		summary, err := comps.Followers.Run(ctx)
		if err != nil {
			slog.Error("scheduled follower stats aborted", "error", err)
			return
		}
		slog.Info("scheduled follower stats finished",
			"run_id", summary.RunID, "total", summary.Total,
			"recorded", summary.Recorded, "failed", summary.Failed, "skipped", summary.Skipped)
	}); err != nil {
		log.Fatalf("Invalid CRON_FOLLOWER_SCHEDULE %q: %v", cfg.CronFollowerSchedule, err)
	}

	c.Start()
	slog.Info("scheduler started", "dispatch", cfg.CronDispatchSchedule, "followers", cfg.CronFollowerSchedule)

	<-ctx.Done()
	slog.Info("scheduler stopping")

	// Stop returns a context that is done once running jobs complete.
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("tracing shutdown error", "error", err)
	}
}
