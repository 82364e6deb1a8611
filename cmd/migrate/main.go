// Command migrate applies, inspects and rolls back schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: migrate [-timeout 2m] <up|auto|status|down> [version]")
}

func run() error {
	timeout := flag.Duration("timeout", 2*time.Minute, "Upper bound on the whole operation")
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		slog.Info("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		slog.Info("automigrations applied", "models", len(database.PersistentModels()))
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		slog.Info("schema status",
			"mode", status.Mode,
			"env", status.Environment,
			"run_sql", status.RunSQL,
			"run_auto", status.AutoMigrate,
			"applied", len(status.AppliedVersions),
			"pending", len(status.PendingMigrations),
			"current", status.Current())
		for _, table := range status.MissingTables {
			slog.Warn("missing table", "table", table)
		}
		for _, m := range status.PendingMigrations {
			slog.Info("pending migration", "version", fmt.Sprintf("%06d", m.Version), "name", m.Name)
		}
	case "down":
		if flag.NArg() < 2 {
			return usage()
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("rolled back migration", "version", version)
	default:
		return usage()
	}

	return nil
}
